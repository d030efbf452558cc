package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer представляет биллинг-аккаунт подписчика (один на пользователя)
type Customer struct {
	ID           uuid.UUID `db:"id" json:"id"`
	SubscriberID string    `db:"subscriber_id" json:"subscriber_id"`
	StripeID     string    `db:"stripe_id" json:"stripe_id"`
	Email        string    `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Subscriber аутентифицированный пользователь, от имени которого выполняется запрос
type Subscriber struct {
	ID    string
	Email string
}

// NewCustomer создает нового Customer с заданными параметрами
func NewCustomer(subscriberID, stripeID, email string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		StripeID:     stripeID,
		Email:        email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
