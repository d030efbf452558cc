package repository

import (
	"context"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// CustomerRepository хранилище биллинг-аккаунтов подписчиков.
type CustomerRepository interface {
	// GetBySubscriberID возвращает domain.ErrNotFound, если клиента нет.
	GetBySubscriberID(ctx context.Context, subscriberID string) (*domain.Customer, error)

	// Create возвращает domain.ErrDuplicate, если клиент подписчика уже существует.
	Create(ctx context.Context, customer *domain.Customer) error
}

// SubscriptionRepository хранилище локального отражения подписок.
type SubscriptionRepository interface {
	// ListByCustomer возвращает все подписки клиента (включая завершенные).
	ListByCustomer(ctx context.Context, customerStripeID string) ([]domain.Subscription, error)

	// Upsert вставляет подписку или обновляет существующую по stripe_id.
	Upsert(ctx context.Context, sub *domain.Subscription) error
}
