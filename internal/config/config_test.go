package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWTSECRET", "secret")
	t.Setenv("DATABASE_DSN", "postgres://localhost:5432/subscriptions")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Stripe.CancelAtPeriodEnd)
	assert.Equal(t, 15*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "subscription_events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("AUTH_JWTSECRET", "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwtSecret")
}

func TestLoadConfigRequiresDSNInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWTSECRET", "secret")
	t.Setenv("DATABASE_DSN", "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestLoadConfigDevelopmentWithoutDSN(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("AUTH_JWTSECRET", "secret")
	t.Setenv("DATABASE_DSN", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STRIPE_APIKEY", "sk_test_env")
	t.Setenv("AUTH_JWTSECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
app:
  port: "9090"
  env: staging
stripe:
  apiKey: sk_test_file
  cancelAtPeriodEnd: false
redis:
  addr: localhost:6379
  ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "staging", cfg.App.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "sk_test_env", cfg.Stripe.APIKey)
	assert.False(t, cfg.Stripe.CancelAtPeriodEnd)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfigBrokenFile(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWTSECRET", "secret")

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
