package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheRepository(client, ttl, logger.NewNop()), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	got, err := cache.GetCachedCustomerSubscriptions(ctx, "cus_1")
	require.NoError(t, err)
	assert.Nil(t, got, "miss must be nil")

	subs := []domain.Subscription{{StripeID: "sub_1", CustomerStripeID: "cus_1", Status: domain.SubscriptionStatusActive}}
	stored, err := cache.CacheCustomerSubscriptions(ctx, "cus_1", subs, 0)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, time.Minute, mr.TTL(customerSubscriptionsKey("cus_1")))

	got, err = cache.GetCachedCustomerSubscriptions(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sub_1", got[0].StripeID)

	require.NoError(t, cache.InvalidateCustomerSubscriptions(ctx, "cus_1"))
	assert.False(t, mr.Exists(customerSubscriptionsKey("cus_1")))
}

func TestRedisCacheEmptyListIsHit(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	_, err := cache.CacheCustomerSubscriptions(ctx, "cus_2", nil, 0)
	require.NoError(t, err)

	got, err := cache.GetCachedCustomerSubscriptions(ctx, "cus_2")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRedisCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	_, err := cache.CacheCustomerSubscriptions(ctx, "cus_3", []domain.Subscription{{StripeID: "sub_3"}}, 0)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	got, err := cache.GetCachedCustomerSubscriptions(ctx, "cus_3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheSkipsListReadBeforeInvalidation(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	version, err := cache.CustomerSubscriptionsVersion(ctx, "cus_5")
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, cache.InvalidateCustomerSubscriptions(ctx, "cus_5"))

	stored, err := cache.CacheCustomerSubscriptions(ctx, "cus_5", []domain.Subscription{{StripeID: "sub_old"}}, version)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists(customerSubscriptionsKey("cus_5")))

	version, err = cache.CustomerSubscriptionsVersion(ctx, "cus_5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	stored, err = cache.CacheCustomerSubscriptions(ctx, "cus_5", []domain.Subscription{{StripeID: "sub_new"}}, version)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestRedisCacheCorruptedEntry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set(customerSubscriptionsKey("cus_4"), "not-json"))

	_, err := cache.GetCachedCustomerSubscriptions(context.Background(), "cus_4")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0, logger.NewNop())
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), mr.Addr(), "", 0, logger.NewNop())
	assert.Error(t, err)
}
