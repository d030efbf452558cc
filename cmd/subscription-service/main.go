package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/subscription-service/internal/app"
	"github.com/Dhoini/subscription-service/internal/billing"
	"github.com/Dhoini/subscription-service/internal/config"
	"github.com/Dhoini/subscription-service/internal/db"
	"github.com/Dhoini/subscription-service/internal/http/routes"
	"github.com/Dhoini/subscription-service/internal/http/server"
	"github.com/Dhoini/subscription-service/internal/kafka"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

const configPath = "config.yml"

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.New(logger.INFO).Fatalw("Failed to load configuration", "error", err)
	}

	log := logger.New(logger.ParseLevel(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	customers, subscriptions, closeStorage := newStorage(ctx, cfg, log)
	defer closeStorage()

	// Кэш подписок в Redis включается только при заданном адресе
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log.Named("redis"))
		if err != nil {
			log.Fatalw("Failed to connect to redis", "error", err)
		}
		defer redisClient.Close()

		cache := repository.NewRedisCacheRepository(redisClient, cfg.Redis.TTL, log.Named("cache"))
		subscriptions = repository.NewCachedSubscriptionRepository(subscriptions, cache, log.Named("subscriptions"))
	}

	gateway := billing.NewStripeGateway(cfg.Stripe.APIKey, nil, log.Named("stripe"))
	producer := newProducer(ctx, cfg, log.Named("kafka"))
	defer producer.Close()

	registry := metrics.NewRegistry()
	subscriptionMetrics := metrics.NewSubscriptionMetrics(registry)

	customerService := service.NewCustomerService(customers, gateway, log.Named("customer-service"))
	subscriptionService := service.NewSubscriptionService(
		customerService,
		subscriptions,
		gateway,
		producer,
		subscriptionMetrics,
		service.Options{
			CancelAtPeriodEnd: cfg.Stripe.CancelAtPeriodEnd,
			RetryMaxElapsed:   cfg.Stripe.RetryMaxElapsed,
		},
		log.Named("subscription-service"),
	)
	webhookService := service.NewWebhookService(subscriptions, gateway, producer, subscriptionMetrics, log.Named("webhook-service"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	application := app.NewApp(cfg, registry, subscriptionService, webhookService, log)
	router := gin.New()
	routes.SetupRoutes(router, application)

	srv := server.NewServer(router, cfg.App.Port, log.Named("server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Errorw("HTTP server stopped unexpectedly", "error", err)
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Infow("Server stopped gracefully")
}

// newStorage подключает Postgres или, если DSN не задан, хранилище в памяти
func newStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.CustomerRepository, repository.SubscriptionRepository, func()) {
	if cfg.Database.DSN == "" {
		log.Warnw("Database DSN is not configured, using in-memory storage")
		return repository.NewInMemoryCustomerRepository(), repository.NewInMemorySubscriptionRepository(), func() {}
	}

	dbClient, err := db.NewDBClient(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.ConnectRetry, log.Named("db"))
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	if err := dbClient.EnsureSchema(ctx); err != nil {
		_ = dbClient.Close()
		log.Fatalw("Failed to apply database schema", "error", err)
	}

	customers := repository.NewCustomerRepository(dbClient.DB(), log.Named("customers"))
	subscriptions := repository.NewPostgresSubscriptionRepository(dbClient.DB(), log.Named("subscriptions"))
	return customers, subscriptions, func() { _ = dbClient.Close() }
}

// newProducer возвращает Kafka продюсер или заглушку, если брокеры не заданы
func newProducer(ctx context.Context, cfg *config.Config, log *logger.Logger) kafka.Producer {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warnw("Kafka brokers are not configured, subscription events will not be published")
		return kafka.NewNoopProducer(log)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopic(setupCtx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 3, log); err != nil {
		log.Warnw("Failed to ensure kafka topic", "error", err, "topic", cfg.Kafka.Topic)
	}

	producer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Fatalw("Failed to create Kafka producer", "error", err)
	}
	return producer
}
