package repository

import (
	"context"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Ошибки кеша не прерывают операцию, запрос уходит в основное хранилище.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(repo SubscriptionRepository, cache *RedisCacheRepository, log *logger.Logger) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// ListByCustomer читает список сначала из кеша, потом из БД
func (r *CachedSubscriptionRepository) ListByCustomer(ctx context.Context, customerStripeID string) ([]domain.Subscription, error) {
	cached, err := r.cache.GetCachedCustomerSubscriptions(ctx, customerStripeID)
	if err != nil {
		r.log.Warnw("Error getting subscriptions from cache", "error", err, "customerStripeID", customerStripeID)
	}
	if cached != nil {
		r.log.Debugw("Subscriptions found in cache", "customerStripeID", customerStripeID, "count", len(cached))
		return cached, nil
	}

	// Версия читается до БД: параллельный Upsert сменит ее, и устаревший список не попадет в кеш
	version, versionErr := r.cache.CustomerSubscriptionsVersion(ctx, customerStripeID)

	subs, err := r.repo.ListByCustomer(ctx, customerStripeID)
	if err != nil {
		return nil, err
	}

	if versionErr != nil {
		r.log.Warnw("Failed to read subscriptions cache version", "error", versionErr, "customerStripeID", customerStripeID)
		return subs, nil
	}
	if _, err := r.cache.CacheCustomerSubscriptions(ctx, customerStripeID, subs, version); err != nil {
		r.log.Warnw("Failed to cache subscriptions", "error", err, "customerStripeID", customerStripeID)
	}
	return subs, nil
}

// Upsert сохраняет подписку в БД и инвалидирует кеш клиента
func (r *CachedSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Upsert(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.InvalidateCustomerSubscriptions(ctx, sub.CustomerStripeID); err != nil {
		r.log.Warnw("Failed to invalidate subscriptions cache", "error", err, "customerStripeID", sub.CustomerStripeID)
	}
	return nil
}
