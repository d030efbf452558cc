package routes

import (
	"github.com/Dhoini/subscription-service/internal/app"
	"github.com/Dhoini/subscription-service/internal/http/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, a *app.App) {
	router.Use(a.LoggerMiddleware)
	router.Use(a.MetricsMiddleware)
	router.Use(gin.Recovery())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	if a.WebhookHandler != nil {
		router.POST("/webhooks/stripe", a.WebhookHandler.HandleStripeWebhook)
	} else {
		a.Logger.Warnw("Stripe webhook secret is not configured, webhook endpoint disabled")
	}

	api := router.Group("/api/v1")
	api.Use(a.AuthMiddleware.RequireAuth())
	{
		subscription := api.Group("/subscription")
		subscription.GET("", a.SubscriptionHandler.GetSubscription)
		subscription.POST("", a.SubscriptionHandler.CreateSubscription)
		subscription.DELETE("", a.SubscriptionHandler.CancelSubscription)
		subscription.POST("/reactivate", a.SubscriptionHandler.ReactivateSubscription)
	}

	a.Logger.Infow("API routes successfully configured")
}
