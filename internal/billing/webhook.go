package billing

import (
	"encoding/json"
	"fmt"

	"github.com/Dhoini/subscription-service/internal/domain"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Типы событий Stripe, которые синхронизируют локальное отражение подписок
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookEvent разобранное событие Stripe.
// Subscription заполнено только для событий customer.subscription.*.
type WebhookEvent struct {
	ID           string
	Type         string
	Subscription *domain.Subscription
}

// ParseWebhookEvent проверяет подпись и разбирает тело вебхука.
func ParseWebhookEvent(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		if event.Data == nil {
			return nil, fmt.Errorf("%w: event %s has no data", ErrInvalidWebhook, event.ID)
		}
		var s stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: failed to decode subscription: %v", ErrInvalidWebhook, err)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("%w: subscription id missing in event %s", ErrInvalidWebhook, event.ID)
		}
		out.Subscription = ToDomainSubscription(&s)
	}
	return out, nil
}
