package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/jmoiron/sqlx"
)

type postgresCustomerRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewCustomerRepository создает репозиторий клиентов поверх PostgreSQL
func NewCustomerRepository(db *sqlx.DB, log *logger.Logger) CustomerRepository {
	return &postgresCustomerRepository{
		db:  db,
		log: log,
	}
}

func (r *postgresCustomerRepository) GetBySubscriberID(ctx context.Context, subscriberID string) (*domain.Customer, error) {
	var customer domain.Customer

	query := `
		SELECT id, subscriber_id, stripe_id, email, created_at, updated_at
		FROM customers
		WHERE subscriber_id = $1
	`

	if err := r.db.GetContext(ctx, &customer, query, subscriberID); err != nil {
		err = mapDBError(err)
		if errors.Is(err, domain.ErrNotFound) {
			r.log.Debugw("Customer not found", "subscriberID", subscriberID)
			return nil, err
		}
		r.log.Errorw("Failed to get customer by subscriberID", "error", err, "subscriberID", subscriberID)
		return nil, fmt.Errorf("repository: failed to get customer: %w", err)
	}

	return &customer, nil
}

func (r *postgresCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, subscriber_id, stripe_id, email, created_at, updated_at)
		VALUES (:id, :subscriber_id, :stripe_id, :email, :created_at, :updated_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, customer); err != nil {
		err = mapDBError(err)
		if errors.Is(err, domain.ErrDuplicate) {
			r.log.Warnw("Customer already exists", "subscriberID", customer.SubscriberID)
			return err
		}
		r.log.Errorw("Failed to create customer", "error", err, "subscriberID", customer.SubscriberID)
		return fmt.Errorf("repository: failed to create customer: %w", err)
	}

	r.log.Debugw("Customer created", "customerID", customer.ID, "subscriberID", customer.SubscriberID)
	return nil
}
