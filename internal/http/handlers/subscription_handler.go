package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/middleware"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/Dhoini/subscription-service/pkg/req"
	"github.com/Dhoini/subscription-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// Сообщения об ошибках, которые видит клиент
const (
	msgNotFound          = "Subscription not found"
	msgInvalidRequest    = "Invalid request data"
	msgPaymentDeclined   = "Payment was declined"
	msgBillingRejected   = "Billing provider rejected the request"
	msgNotReactivatable  = "Subscription cannot be reactivated"
	msgUnauthenticated   = "Authentication credentials were not provided"
	msgRetrieveFailed    = "Something went wrong retrieving the subscription."
	msgCreateFailed      = "Something went wrong processing the payment."
	msgCancelFailed      = "Something went wrong cancelling the subscription."
	msgReactivateFailed  = "Something went wrong reactivating the subscription."
	idempotencyKeyHeader = "Idempotency-Key"

	maxCreateBodySize = int64(8192)
)

// SubscriptionHandler обрабатывает HTTP запросы к подписке текущего пользователя.
type SubscriptionHandler struct {
	service service.SubscriptionService
	resolve middleware.SubscriberResolver
	log     *logger.Logger
}

// NewSubscriptionHandler создает новый экземпляр SubscriptionHandler.
// resolve == nil означает middleware.SubscriberFromContext.
func NewSubscriptionHandler(svc service.SubscriptionService, resolve middleware.SubscriberResolver, log *logger.Logger) *SubscriptionHandler {
	if resolve == nil {
		resolve = middleware.SubscriberFromContext
	}
	return &SubscriptionHandler{
		service: svc,
		resolve: resolve,
		log:     log,
	}
}

type CreateSubscriptionRequest struct {
	StripeToken       string `json:"stripe_token" validate:"required,max=255"`
	Plan              string `json:"plan" validate:"required,max=255"`
	ChargeImmediately *bool  `json:"charge_immediately"`
}

// chargeImmediately по умолчанию true
func (r CreateSubscriptionRequest) chargeImmediately() bool {
	return r.ChargeImmediately == nil || *r.ChargeImmediately
}

// GetSubscription обрабатывает GET /api/v1/subscription
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	subscriber, ok := h.subscriber(c)
	if !ok {
		return
	}

	sub, err := h.service.GetSubscription(c.Request.Context(), subscriber)
	if err != nil {
		h.writeError(c, err, msgRetrieveFailed)
		return
	}

	res.JsonResponse(c.Writer, sub, http.StatusOK)
}

// CreateSubscription обрабатывает POST /api/v1/subscription
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	subscriber, ok := h.subscriber(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCreateBodySize)
	body, err := req.Decode[CreateSubscriptionRequest](c.Request.Body)
	// Пустое тело проверяется как пустой объект
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		h.log.Debugw("Failed to decode request body", "error", err)
		h.abort(c, res.ErrorResponse{Error: msgInvalidRequest, Details: map[string][]string{"non_field_errors": {"Invalid JSON body."}}}, http.StatusBadRequest)
		return
	}
	if err := req.IsValid(body); err != nil {
		h.abort(c, res.ErrorResponse{Error: msgInvalidRequest, Details: req.ValidationDetails(err)}, http.StatusBadRequest)
		return
	}

	sub, err := h.service.CreateSubscription(c.Request.Context(), subscriber, service.CreateSubscriptionInput{
		Token:             body.StripeToken,
		Plan:              body.Plan,
		ChargeImmediately: body.chargeImmediately(),
		IdempotencyKey:    c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		h.writeError(c, err, msgCreateFailed)
		return
	}

	res.JsonResponse(c.Writer, sub, http.StatusCreated)
}

// CancelSubscription обрабатывает DELETE /api/v1/subscription
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	subscriber, ok := h.subscriber(c)
	if !ok {
		return
	}

	if _, err := h.service.CancelSubscription(c.Request.Context(), subscriber); err != nil {
		h.writeStateError(c, err, msgCancelFailed)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReactivateSubscription обрабатывает POST /api/v1/subscription/reactivate
func (h *SubscriptionHandler) ReactivateSubscription(c *gin.Context) {
	subscriber, ok := h.subscriber(c)
	if !ok {
		return
	}

	if _, err := h.service.ReactivateSubscription(c.Request.Context(), subscriber); err != nil {
		h.writeStateError(c, err, msgReactivateFailed)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SubscriptionHandler) subscriber(c *gin.Context) (domain.Subscriber, bool) {
	subscriber, err := h.resolve(c)
	if err != nil {
		h.abort(c, res.ErrorResponse{Error: msgUnauthenticated, ErrorCode: http.StatusUnauthorized}, http.StatusUnauthorized)
		return domain.Subscriber{}, false
	}
	return subscriber, true
}

// writeError отображает ошибку сервиса в HTTP статус, включая отказы провайдера
func (h *SubscriptionHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrPaymentFailed):
		h.abort(c, res.ErrorResponse{Error: msgPaymentDeclined, Details: billingCode(err)}, http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrBillingRejected):
		h.abort(c, res.ErrorResponse{Error: msgBillingRejected, Details: billingCode(err)}, http.StatusBadRequest)
	default:
		h.writeStateError(c, err, fallback)
	}
}

// writeStateError отличает только отсутствие подписки и недопустимый переход
func (h *SubscriptionHandler) writeStateError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		h.abort(c, res.ErrorResponse{Error: msgUnauthenticated, ErrorCode: http.StatusUnauthorized}, http.StatusUnauthorized)
	case errors.Is(err, domain.ErrNoSubscription):
		h.abort(c, res.ErrorResponse{Error: msgNotFound}, http.StatusNotFound)
	case errors.Is(err, domain.ErrNotReactivatable):
		h.abort(c, res.ErrorResponse{Error: msgNotReactivatable}, http.StatusConflict)
	default:
		h.log.Errorw("Subscription request failed", "path", c.FullPath(), "error", err)
		h.abort(c, res.ErrorResponse{Error: fallback}, http.StatusInternalServerError)
	}
}

func (h *SubscriptionHandler) abort(c *gin.Context, body res.ErrorResponse, status int) {
	res.JsonErrorResponse(c.Writer, body, status, h.log)
	c.Abort()
}

// billingCode возвращает код ошибки провайдера для поля details
func billingCode(err error) any {
	var be *domain.BillingError
	if !errors.As(err, &be) || be.Code == "" {
		return nil
	}
	return map[string]string{"code": be.Code}
}
