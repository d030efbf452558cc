package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-service/internal/billing"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/kafka"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

// WebhookService применяет события провайдера к локальному отражению подписок
type WebhookService interface {
	// HandleEvent возвращает false, если событие не относится к подпискам и было проигнорировано.
	HandleEvent(ctx context.Context, event *billing.WebhookEvent) (bool, error)
}

type webhookService struct {
	subs     repository.SubscriptionRepository
	billing  billing.Gateway
	producer kafka.Producer
	metrics  metrics.SubscriptionMetrics
	log      *logger.Logger
}

// NewWebhookService создает сервис обработки вебхуков
// Состояние подписки берется у провайдера, а не из тела события.
func NewWebhookService(subs repository.SubscriptionRepository, gateway billing.Gateway, producer kafka.Producer, m metrics.SubscriptionMetrics, log *logger.Logger) WebhookService {
	return &webhookService{
		subs:     subs,
		billing:  gateway,
		producer: producer,
		metrics:  m,
		log:      log,
	}
}

func (s *webhookService) HandleEvent(ctx context.Context, event *billing.WebhookEvent) (bool, error) {
	s.metrics.IncWebhookEvent(event.Type)

	if event.Subscription == nil {
		s.log.Debugw("Webhook event ignored", "eventID", event.ID, "type", event.Type)
		return false, nil
	}

	sub, err := s.billing.GetSubscription(ctx, event.Subscription.StripeID)
	if err != nil {
		if errors.Is(err, domain.ErrBillingRejected) {
			s.log.Warnw("Subscription from webhook is unknown to provider, skipping", "eventID", event.ID, "subscriptionID", event.Subscription.StripeID)
			return true, nil
		}
		s.metrics.IncOperation(OperationSync, metrics.ResultError)
		return true, fmt.Errorf("failed to fetch subscription %s: %w", event.Subscription.StripeID, err)
	}
	if sub.CustomerStripeID == "" {
		sub.CustomerStripeID = event.Subscription.CustomerStripeID
	}

	if err := s.subs.Upsert(ctx, sub); err != nil {
		s.metrics.IncOperation(OperationSync, metrics.ResultError)
		s.log.Errorw("Failed to sync subscription from webhook", "error", err, "eventID", event.ID, "subscriptionID", sub.StripeID)
		return true, fmt.Errorf("failed to sync subscription %s: %w", sub.StripeID, err)
	}
	s.metrics.IncOperation(OperationSync, metrics.ResultSuccess)

	if err := s.producer.PublishSubscriptionEvent(ctx, kafka.EventSubscriptionSynced, sub); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "subscriptionID", sub.StripeID)
	}

	s.log.Infow("Subscription synced from webhook", "eventID", event.ID, "type", event.Type, "subscriptionID", sub.StripeID, "status", sub.Status)
	return true, nil
}
