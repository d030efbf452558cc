package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/subscription-service/internal/billing"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/Dhoini/subscription-service/pkg/res"

	"github.com/gin-gonic/gin"
)

const (
	// Ограничение на размер тела запроса вебхука
	maxRequestBodySize = int64(65536)
)

// WebhookHandler обрабатывает входящие вебхуки от Stripe.
type WebhookHandler struct {
	service       service.WebhookService
	log           *logger.Logger
	webhookSecret string
}

// NewWebhookHandler создает новый экземпляр WebhookHandler.
func NewWebhookHandler(webhookSecret string, svc service.WebhookService, log *logger.Logger) (*WebhookHandler, error) {
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	return &WebhookHandler{
		service:       svc,
		log:           log,
		webhookSecret: webhookSecret,
	}, nil
}

// HandleStripeWebhook обрабатывает POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to read webhook request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Cannot read request body"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Missing Stripe-Signature header"}, http.StatusBadRequest, h.log)
		c.Abort()
		return
	}

	event, err := billing.ParseWebhookEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		h.log.Warnw("Webhook signature verification failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Webhook signature verification failed"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	// 5xx заставляет Stripe повторить доставку
	if _, err := h.service.HandleEvent(c.Request.Context(), event); err != nil {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to process webhook"}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	res.JsonResponse(c.Writer, gin.H{"received": true}, http.StatusOK)
}
