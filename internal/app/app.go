package app

import (
	"github.com/Dhoini/subscription-service/internal/config"
	"github.com/Dhoini/subscription-service/internal/http/handlers"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/middleware"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// App представляет собой контейнер для всех компонентов HTTP слоя
type App struct {
	Config              *config.Config
	Registry            *prometheus.Registry
	SubscriptionHandler *handlers.SubscriptionHandler
	WebhookHandler      *handlers.WebhookHandler
	AuthMiddleware      *middleware.JWTMiddleware
	LoggerMiddleware    gin.HandlerFunc
	MetricsMiddleware   gin.HandlerFunc
	Logger              *logger.Logger
}

// NewApp создает и инициализирует новый экземпляр приложения.
// WebhookHandler остается nil, если секрет вебхука не настроен.
func NewApp(
	cfg *config.Config,
	registry *prometheus.Registry,
	subscriptions service.SubscriptionService,
	webhooks service.WebhookService,
	log *logger.Logger,
) *App {
	var webhookHandler *handlers.WebhookHandler
	if h, err := handlers.NewWebhookHandler(cfg.Stripe.WebhookSecret, webhooks, log.Named("webhook")); err == nil {
		webhookHandler = h
	}

	validator := &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}

	return &App{
		Config:              cfg,
		Registry:            registry,
		SubscriptionHandler: handlers.NewSubscriptionHandler(subscriptions, middleware.SubscriberFromContext, log.Named("http")),
		WebhookHandler:      webhookHandler,
		AuthMiddleware:      middleware.NewJWTMiddleware(log.Named("auth"), validator),
		LoggerMiddleware:    middleware.RequestLogger(log.Named("http")),
		MetricsMiddleware:   middleware.RequestMetrics(metrics.NewHTTPMetrics(registry)),
		Logger:              log,
	}
}
