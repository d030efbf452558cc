package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port            string        `mapstructure:"port"`
		Env             string        `mapstructure:"env"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	} `mapstructure:"app"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Database struct {
		DSN          string        `mapstructure:"dsn"`
		MaxOpenConns int           `mapstructure:"maxOpenConns"`
		ConnectRetry time.Duration `mapstructure:"connectRetry"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey            string        `mapstructure:"apiKey"`
		WebhookSecret     string        `mapstructure:"webhookSecret"`
		CancelAtPeriodEnd bool          `mapstructure:"cancelAtPeriodEnd"`
		RetryMaxElapsed   time.Duration `mapstructure:"retryMaxElapsed"`
	} `mapstructure:"stripe"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// IsProduction сообщает, запущено ли приложение в production окружении
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// LoadConfig загружает конфигурацию из файла и переменных окружения.
// Файл необязателен: если его нет, используются значения по умолчанию и окружение.
// Переменные окружения именуются по ключу: stripe.apiKey -> STRIPE_APIKEY.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env нужен только локально, его отсутствие не ошибка
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate проверяет обязательные параметры.
// Пустой database.dsn допустим только вне production и означает хранилище в памяти.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwtSecret (AUTH_JWTSECRET) must be set")
	}
	if c.IsProduction() && c.Database.DSN == "" {
		return errors.New("database.dsn (DATABASE_DSN) must be set in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.shutdownTimeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.connectRetry", 30*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 15*time.Minute)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "subscription_events")
	v.SetDefault("stripe.apiKey", "")
	v.SetDefault("stripe.webhookSecret", "")
	v.SetDefault("stripe.cancelAtPeriodEnd", true)
	v.SetDefault("stripe.retryMaxElapsed", 30*time.Second)
	v.SetDefault("auth.jwtSecret", "")
}
