package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Dhoini/subscription-service/internal/billing"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/kafka"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookService(subs repository.SubscriptionRepository, gateway *fakeGateway, producer *recordingProducer) WebhookService {
	return NewWebhookService(subs, gateway, producer, metrics.NewNoopSubscriptionMetrics(), logger.NewNop())
}

func TestWebhookServiceSyncsSubscription(t *testing.T) {
	subs := repository.NewInMemorySubscriptionRepository()
	producer := &recordingProducer{}
	gateway := &fakeGateway{}
	gateway.remember(&domain.Subscription{StripeID: "sub_1", CustomerStripeID: "cus_1", Status: domain.SubscriptionStatusCanceled})
	svc := newWebhookService(subs, gateway, producer)
	ctx := context.Background()

	handled, err := svc.HandleEvent(ctx, &billing.WebhookEvent{
		ID:           "evt_1",
		Type:         billing.EventSubscriptionDeleted,
		Subscription: &domain.Subscription{StripeID: "sub_1", CustomerStripeID: "cus_1", Status: domain.SubscriptionStatusCanceled},
	})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{kafka.EventSubscriptionSynced}, producer.events)

	list, err := subs.ListByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.SubscriptionStatusCanceled, list[0].Status)
}

func TestWebhookServiceStaleEventDoesNotOverwriteNewerState(t *testing.T) {
	env := newTestEnv(t, Options{CancelAtPeriodEnd: true})
	env.seed(t, domain.Subscription{StripeID: "sub_1", Status: domain.SubscriptionStatusActive, CurrentPeriodEnd: env.now.AddDate(0, 1, 0)})
	ctx := context.Background()

	_, err := env.svc.CancelSubscription(ctx, subscriber)
	require.NoError(t, err)

	// created приходит после отмены и несет снимок до нее
	svc := newWebhookService(env.subs, env.gateway, env.producer)
	_, err = svc.HandleEvent(ctx, &billing.WebhookEvent{
		ID:   "evt_late",
		Type: billing.EventSubscriptionCreated,
		Subscription: &domain.Subscription{
			StripeID:          "sub_1",
			CustomerStripeID:  "cus_" + subscriber.ID,
			Status:            domain.SubscriptionStatusActive,
			CancelAtPeriodEnd: false,
			CurrentPeriodEnd:  env.now.AddDate(0, 1, 0),
		},
	})
	require.NoError(t, err)

	stored := env.stored(t)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].CancelAtPeriodEnd)

	_, err = env.svc.ReactivateSubscription(ctx, subscriber)
	require.NoError(t, err)
}

func TestWebhookServiceUnknownSubscriptionIsSkipped(t *testing.T) {
	subs := repository.NewInMemorySubscriptionRepository()
	producer := &recordingProducer{}
	svc := newWebhookService(subs, &fakeGateway{}, producer)
	ctx := context.Background()

	handled, err := svc.HandleEvent(ctx, &billing.WebhookEvent{
		ID:           "evt_3",
		Type:         billing.EventSubscriptionUpdated,
		Subscription: &domain.Subscription{StripeID: "sub_gone", CustomerStripeID: "cus_1"},
	})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Empty(t, producer.events)

	list, err := subs.ListByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWebhookServiceProviderUnavailable(t *testing.T) {
	gateway := &fakeGateway{getErr: &domain.BillingError{Operation: "get_subscription", Kind: domain.BillingErrorUnavailable, Retryable: true}}
	svc := newWebhookService(repository.NewInMemorySubscriptionRepository(), gateway, &recordingProducer{})

	_, err := svc.HandleEvent(context.Background(), &billing.WebhookEvent{
		ID:           "evt_4",
		Type:         billing.EventSubscriptionUpdated,
		Subscription: &domain.Subscription{StripeID: "sub_1"},
	})
	assert.ErrorIs(t, err, domain.ErrBillingUnavailable)
}

type failingSubscriptionRepo struct {
	*repository.InMemorySubscriptionRepository
}

func (failingSubscriptionRepo) Upsert(context.Context, *domain.Subscription) error {
	return errors.New("db down")
}

func TestWebhookServiceStorageFailure(t *testing.T) {
	gateway := &fakeGateway{}
	gateway.remember(&domain.Subscription{StripeID: "sub_1", CustomerStripeID: "cus_1"})
	producer := &recordingProducer{}
	svc := newWebhookService(failingSubscriptionRepo{repository.NewInMemorySubscriptionRepository()}, gateway, producer)

	handled, err := svc.HandleEvent(context.Background(), &billing.WebhookEvent{
		ID:           "evt_5",
		Type:         billing.EventSubscriptionUpdated,
		Subscription: &domain.Subscription{StripeID: "sub_1"},
	})
	assert.Error(t, err)
	assert.True(t, handled)
	assert.Empty(t, producer.events)
}

func TestWebhookServiceIgnoresOtherEvents(t *testing.T) {
	producer := &recordingProducer{}
	gateway := &fakeGateway{}
	svc := newWebhookService(repository.NewInMemorySubscriptionRepository(), gateway, producer)

	handled, err := svc.HandleEvent(context.Background(), &billing.WebhookEvent{ID: "evt_2", Type: "invoice.paid"})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, producer.events)
	assert.Empty(t, gateway.calls)
}
