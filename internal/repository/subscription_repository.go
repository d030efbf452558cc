package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `stripe_id, customer_stripe_id, plan, status, quantity, start_date,
	current_period_start, current_period_end, cancel_at_period_end, canceled_at, ended_at,
	trial_start, trial_end, application_fee_percent, metadata, created_at, updated_at`

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresSubscriptionRepo) ListByCustomer(ctx context.Context, customerStripeID string) ([]domain.Subscription, error) {
	subs := []domain.Subscription{}
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE customer_stripe_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &subs, query, customerStripeID); err != nil {
		r.log.Errorw("Failed to list subscriptions", "error", err, "customerStripeID", customerStripeID)
		return nil, fmt.Errorf("repository: failed to list subscriptions: %w", err)
	}

	r.log.Debugw("Subscriptions loaded", "customerStripeID", customerStripeID, "count", len(subs))
	return subs, nil
}

// Upsert сохраняет состояние подписки. created_at существующей строки не меняется.
func (r *postgresSubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (
			:stripe_id, :customer_stripe_id, :plan, :status, :quantity, :start_date,
			:current_period_start, :current_period_end, :cancel_at_period_end, :canceled_at, :ended_at,
			:trial_start, :trial_end, :application_fee_percent, :metadata, :created_at, :updated_at
		)
		ON CONFLICT (stripe_id) DO UPDATE SET
			customer_stripe_id = EXCLUDED.customer_stripe_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			quantity = EXCLUDED.quantity,
			start_date = EXCLUDED.start_date,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			canceled_at = EXCLUDED.canceled_at,
			ended_at = EXCLUDED.ended_at,
			trial_start = EXCLUDED.trial_start,
			trial_end = EXCLUDED.trial_end,
			application_fee_percent = EXCLUDED.application_fee_percent,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		r.log.Errorw("Failed to upsert subscription", "error", err, "subscriptionID", sub.StripeID)
		return fmt.Errorf("repository: failed to upsert subscription: %w", err)
	}

	r.log.Debugw("Subscription saved", "subscriptionID", sub.StripeID, "status", sub.Status)
	return nil
}
