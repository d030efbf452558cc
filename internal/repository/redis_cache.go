package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	customerSubscriptionsKeyPrefix        = "customer_subscriptions:"
	customerSubscriptionsVersionKeyPrefix = "customer_subscriptions_version:"

	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository кеширует списки подписок клиентов в Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisClient подключается к Redis и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Errorw("Failed to connect to Redis", "error", err, "addr", addr)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return client, nil
}

// NewRedisCacheRepository создает кеш. ttl <= 0 означает значение по умолчанию.
func NewRedisCacheRepository(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

func customerSubscriptionsKey(customerStripeID string) string {
	return customerSubscriptionsKeyPrefix + customerStripeID
}

func customerSubscriptionsVersionKey(customerStripeID string) string {
	return customerSubscriptionsVersionKeyPrefix + customerStripeID
}

// CustomerSubscriptionsVersion возвращает версию списка подписок клиента.
// Версия растет при каждой инвалидации, отсутствующий ключ означает 0.
func (r *RedisCacheRepository) CustomerSubscriptionsVersion(ctx context.Context, customerStripeID string) (int64, error) {
	version, err := r.client.Get(ctx, customerSubscriptionsVersionKey(customerStripeID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to get subscriptions cache version: %w", err)
	}
	return version, nil
}

// CacheCustomerSubscriptions кеширует список подписок клиента (в том числе пустой),
// если с момента чтения version список не инвалидировался.
// Возвращает false, если список устарел и не был записан.
func (r *RedisCacheRepository) CacheCustomerSubscriptions(ctx context.Context, customerStripeID string, subs []domain.Subscription, version int64) (bool, error) {
	if subs == nil {
		subs = []domain.Subscription{}
	}
	data, err := json.Marshal(subs)
	if err != nil {
		return false, fmt.Errorf("failed to marshal subscriptions: %w", err)
	}

	versionKey := customerSubscriptionsVersionKey(customerStripeID)
	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, customerSubscriptionsKey(customerStripeID), data, r.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, versionKey)
	// TxFailedErr: версия сменилась между проверкой и записью
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return false, fmt.Errorf("failed to cache subscriptions: %w", err)
	}

	if !stored {
		r.log.Debugw("Stale subscriptions list not cached", "customerStripeID", customerStripeID, "version", version)
		return false, nil
	}
	r.log.Debugw("Customer subscriptions cached", "customerStripeID", customerStripeID, "count", len(subs))
	return true, nil
}

// GetCachedCustomerSubscriptions возвращает nil, nil при промахе кеша.
// Закешированный пустой список возвращается как пустой не-nil срез.
func (r *RedisCacheRepository) GetCachedCustomerSubscriptions(ctx context.Context, customerStripeID string) ([]domain.Subscription, error) {
	data, err := r.client.Get(ctx, customerSubscriptionsKey(customerStripeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscriptions from cache: %w", err)
	}

	subs := []domain.Subscription{}
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscriptions: %w", err)
	}
	return subs, nil
}

// InvalidateCustomerSubscriptions удаляет кеш подписок клиента и увеличивает его версию
func (r *RedisCacheRepository) InvalidateCustomerSubscriptions(ctx context.Context, customerStripeID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, customerSubscriptionsVersionKey(customerStripeID))
		pipe.Del(ctx, customerSubscriptionsKey(customerStripeID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate subscriptions cache: %w", err)
	}
	r.log.Debugw("Customer subscriptions cache invalidated", "customerStripeID", customerStripeID)
	return nil
}
