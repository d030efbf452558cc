package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/billing"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/kafka"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Имена операций для логов и метрик
const (
	OperationGet        = "get"
	OperationCreate     = "create"
	OperationCancel     = "cancel"
	OperationReactivate = "reactivate"
	OperationSync       = "sync"
)

// CreateSubscriptionInput параметры оформления подписки
type CreateSubscriptionInput struct {
	Token             string
	Plan              string
	ChargeImmediately bool
	IdempotencyKey    string
}

// Options поведение сервиса, задаваемое конфигурацией
type Options struct {
	// CancelAtPeriodEnd отменять подписку в конце оплаченного периода, а не сразу
	CancelAtPeriodEnd bool
	// RetryMaxElapsed сколько времени повторять подписку при временных ошибках провайдера
	RetryMaxElapsed time.Duration
}

// SubscriptionService операции над текущей подпиской подписчика
type SubscriptionService interface {
	GetSubscription(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, subscriber domain.Subscriber, input CreateSubscriptionInput) (*domain.Subscription, error)
	CancelSubscription(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error)
	ReactivateSubscription(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error)
}

type subscriptionService struct {
	customers CustomerService
	subs      repository.SubscriptionRepository
	billing   billing.Gateway
	producer  kafka.Producer
	metrics   metrics.SubscriptionMetrics
	opts      Options
	log       *logger.Logger

	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewSubscriptionService создает новый сервис для работы с подписками
func NewSubscriptionService(
	customers CustomerService,
	subs repository.SubscriptionRepository,
	gateway billing.Gateway,
	producer kafka.Producer,
	m metrics.SubscriptionMetrics,
	opts Options,
	log *logger.Logger,
) SubscriptionService {
	s := &subscriptionService{
		customers: customers,
		subs:      subs,
		billing:   gateway,
		producer:  producer,
		metrics:   m,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
	s.newBackOff = s.defaultBackOff
	return s
}

func (s *subscriptionService) defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = s.opts.RetryMaxElapsed
	return bo
}

// current находит клиента подписчика и его действующую подписку
func (s *subscriptionService) current(ctx context.Context, subscriber domain.Subscriber) (*domain.Customer, *domain.Subscription, error) {
	customer, err := s.customers.GetOrCreate(ctx, subscriber)
	if err != nil {
		return nil, nil, err
	}

	list, err := s.subs.ListByCustomer(ctx, customer.StripeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	sub, err := domain.CurrentSubscription(list, s.now())
	if err != nil {
		return customer, nil, err
	}
	return customer, sub, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error) {
	_, sub, err := s.current(ctx, subscriber)
	s.record(OperationGet, err)
	if err != nil {
		s.logFailure(OperationGet, subscriber, err)
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, subscriber domain.Subscriber, input CreateSubscriptionInput) (*domain.Subscription, error) {
	sub, err := s.create(ctx, subscriber, input)
	s.record(OperationCreate, err)
	if err != nil {
		s.logFailure(OperationCreate, subscriber, err)
		return nil, err
	}

	s.log.Infow("Subscription created", "subscriberID", subscriber.ID, "subscriptionID", sub.StripeID, "plan", sub.Plan, "status", sub.Status)
	return sub, nil
}

func (s *subscriptionService) create(ctx context.Context, subscriber domain.Subscriber, input CreateSubscriptionInput) (*domain.Subscription, error) {
	customer, err := s.customers.GetOrCreate(ctx, subscriber)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.billing.AttachPaymentSource(ctx, customer.StripeID, input.Token)
	s.metrics.ObserveBillingLatency("attach_payment_source", time.Since(start))
	if err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	var sub *domain.Subscription
	operation := func() error {
		start := time.Now()
		var err error
		sub, err = s.billing.Subscribe(ctx, customer.StripeID, input.Plan, key)
		s.metrics.ObserveBillingLatency("subscribe", time.Since(start))
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		s.log.Warnw("Subscribe failed with retryable error, retrying", "error", err, "retryIn", next, "idempotencyKey", key)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}

	// Локальная копия пишется до выставления счета
	s.mirror(ctx, sub, kafka.EventSubscriptionCreated)

	if input.ChargeImmediately {
		start := time.Now()
		err := s.billing.InvoicePending(ctx, customer.StripeID)
		s.metrics.ObserveBillingLatency("invoice_pending", time.Since(start))
		if err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error) {
	sub, err := s.cancel(ctx, subscriber)
	s.record(OperationCancel, err)
	if err != nil {
		s.logFailure(OperationCancel, subscriber, err)
		return nil, err
	}

	s.log.Infow("Subscription canceled", "subscriberID", subscriber.ID, "subscriptionID", sub.StripeID, "atPeriodEnd", s.opts.CancelAtPeriodEnd)
	return sub, nil
}

func (s *subscriptionService) cancel(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error) {
	_, current, err := s.current(ctx, subscriber)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sub, err := s.billing.CancelSubscription(ctx, current.StripeID, s.opts.CancelAtPeriodEnd)
	s.metrics.ObserveBillingLatency("cancel_subscription", time.Since(start))
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, sub, kafka.EventSubscriptionCanceled)
	return sub, nil
}

func (s *subscriptionService) ReactivateSubscription(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error) {
	sub, err := s.reactivate(ctx, subscriber)
	s.record(OperationReactivate, err)
	if err != nil {
		s.logFailure(OperationReactivate, subscriber, err)
		return nil, err
	}

	s.log.Infow("Subscription reactivated", "subscriberID", subscriber.ID, "subscriptionID", sub.StripeID)
	return sub, nil
}

func (s *subscriptionService) reactivate(ctx context.Context, subscriber domain.Subscriber) (*domain.Subscription, error) {
	_, current, err := s.current(ctx, subscriber)
	if err != nil {
		return nil, err
	}
	if !current.IsReactivatable(s.now()) {
		return nil, domain.ErrNotReactivatable
	}

	start := time.Now()
	sub, err := s.billing.ReactivateSubscription(ctx, current.StripeID)
	s.metrics.ObserveBillingLatency("reactivate_subscription", time.Since(start))
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, sub, kafka.EventSubscriptionReactivated)
	return sub, nil
}

// mirror сохраняет состояние провайдера локально и публикует событие.
// Ошибки только логируются, расхождение исправит следующий вебхук.
func (s *subscriptionService) mirror(ctx context.Context, sub *domain.Subscription, eventType string) {
	if err := s.subs.Upsert(ctx, sub); err != nil {
		s.log.Errorw("Failed to mirror subscription", "error", err, "subscriptionID", sub.StripeID)
	}
	if err := s.producer.PublishSubscriptionEvent(ctx, eventType, sub); err != nil {
		s.log.Warnw("Failed to publish subscription event", "error", err, "type", eventType, "subscriptionID", sub.StripeID)
	}
}

func (s *subscriptionService) record(operation string, err error) {
	s.metrics.IncOperation(operation, resultOf(err))
}

func (s *subscriptionService) logFailure(operation string, subscriber domain.Subscriber, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSubscription), errors.Is(err, domain.ErrNotReactivatable):
		s.log.Debugw("Subscription operation refused", "operation", operation, "subscriberID", subscriber.ID, "reason", err)
	case errors.Is(err, domain.ErrPaymentFailed), errors.Is(err, domain.ErrBillingRejected):
		s.log.Warnw("Subscription operation rejected by provider", "operation", operation, "subscriberID", subscriber.ID, "error", err)
	default:
		s.log.Errorw("Subscription operation failed", "operation", operation, "subscriberID", subscriber.ID, "error", err)
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, domain.ErrNoSubscription):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrNotReactivatable):
		return metrics.ResultConflict
	case errors.Is(err, domain.ErrPaymentFailed):
		return metrics.ResultDeclined
	case errors.Is(err, domain.ErrBillingRejected):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
