package billing

import (
	"context"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// MetadataSubscriberKey ключ метаданных Stripe Customer со ссылкой на подписчика
const MetadataSubscriberKey = "subscriber_id"

// Gateway определяет операции биллинг-провайдера, которые использует сервис.
// Все ошибки провайдера возвращаются как *domain.BillingError.
type Gateway interface {
	// CreateCustomer создает клиента у провайдера и возвращает его ID.
	CreateCustomer(ctx context.Context, subscriberID, email string) (string, error)

	// AttachPaymentSource делает токен платежным средством клиента по умолчанию.
	AttachPaymentSource(ctx context.Context, customerID, token string) error

	// Subscribe подписывает клиента на план.
	Subscribe(ctx context.Context, customerID, plan, idempotencyKey string) (*domain.Subscription, error)

	// InvoicePending выставляет и оплачивает счет по накопленным позициям клиента.
	InvoicePending(ctx context.Context, customerID string) error

	// CancelSubscription отменяет подписку сразу или в конце текущего периода.
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*domain.Subscription, error)

	// GetSubscription читает текущее состояние подписки у провайдера.
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error)

	// ReactivateSubscription снимает отмену в конце периода.
	ReactivateSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
}
