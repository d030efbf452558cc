package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// DriverName имя драйвера database/sql, под которым регистрируется pgx
const DriverName = "pgx"

// schema создает таблицы, если их еще нет
const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id            UUID PRIMARY KEY,
    subscriber_id TEXT NOT NULL UNIQUE,
    stripe_id     TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
    stripe_id               TEXT PRIMARY KEY,
    customer_stripe_id      TEXT NOT NULL,
    plan                    TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL,
    quantity                BIGINT NOT NULL DEFAULT 0,
    start_date              TIMESTAMPTZ,
    current_period_start    TIMESTAMPTZ NOT NULL,
    current_period_end      TIMESTAMPTZ NOT NULL,
    cancel_at_period_end    BOOLEAN NOT NULL DEFAULT FALSE,
    canceled_at             TIMESTAMPTZ,
    ended_at                TIMESTAMPTZ,
    trial_start             TIMESTAMPTZ,
    trial_end               TIMESTAMPTZ,
    application_fee_percent DOUBLE PRECISION,
    metadata                JSONB NOT NULL DEFAULT '{}',
    created_at              TIMESTAMPTZ NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS subscriptions_customer_idx ON subscriptions (customer_stripe_id);
`

// DBClient представляет клиент для работы с базой данных.
type DBClient struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDBClient подключается к PostgreSQL, повторяя попытки с экспоненциальной задержкой
// в течение maxElapsed.
func NewDBClient(ctx context.Context, dsn string, maxOpenConns int, maxElapsed time.Duration, log *logger.Logger) (*DBClient, error) {
	log = log.Named("db")

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxElapsed

	var conn *sqlx.DB
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = sqlx.ConnectContext(ctx, DriverName, dsn)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		log.Warnw("Database is not ready, retrying", "error", err, "retryIn", next)
	})
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if maxOpenConns > 0 {
		conn.SetMaxOpenConns(maxOpenConns)
		conn.SetMaxIdleConns(maxOpenConns)
	}
	conn.SetConnMaxLifetime(time.Hour)

	log.Infow("Connected to database")
	return &DBClient{db: conn, log: log}, nil
}

// NewFromDB оборачивает готовое подключение
func NewFromDB(conn *sqlx.DB, log *logger.Logger) *DBClient {
	return &DBClient{db: conn, log: log.Named("db")}
}

// DB возвращает подключение для репозиториев
func (dc *DBClient) DB() *sqlx.DB {
	return dc.db
}

// EnsureSchema создает таблицы сервиса
func (dc *DBClient) EnsureSchema(ctx context.Context) error {
	if _, err := dc.db.ExecContext(ctx, schema); err != nil {
		dc.log.Errorw("Failed to apply database schema", "error", err)
		return fmt.Errorf("failed to apply database schema: %w", err)
	}
	dc.log.Debugw("Database schema is up to date")
	return nil
}

// Ping проверяет доступность базы
func (dc *DBClient) Ping(ctx context.Context) error {
	return dc.db.PingContext(ctx)
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() error {
	if err := dc.db.Close(); err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
