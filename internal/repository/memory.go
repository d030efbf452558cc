package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// InMemoryCustomerRepository реализация репозитория клиентов в памяти
type InMemoryCustomerRepository struct {
	customers map[string]domain.Customer
	mutex     sync.RWMutex
}

// NewInMemoryCustomerRepository создает новый репозиторий клиентов в памяти
func NewInMemoryCustomerRepository() *InMemoryCustomerRepository {
	return &InMemoryCustomerRepository{
		customers: make(map[string]domain.Customer),
	}
}

// GetBySubscriberID возвращает клиента подписчика
func (r *InMemoryCustomerRepository) GetBySubscriberID(_ context.Context, subscriberID string) (*domain.Customer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	customer, exists := r.customers[subscriberID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return &customer, nil
}

// Create добавляет клиента
func (r *InMemoryCustomerRepository) Create(_ context.Context, customer *domain.Customer) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.customers[customer.SubscriberID]; exists {
		return domain.ErrDuplicate
	}
	r.customers[customer.SubscriberID] = *customer
	return nil
}

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	subs  map[string]domain.Subscription
	mutex sync.RWMutex
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository() *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subs: make(map[string]domain.Subscription),
	}
}

// ListByCustomer возвращает подписки клиента, новые первыми
func (r *InMemorySubscriptionRepository) ListByCustomer(_ context.Context, customerStripeID string) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subs := []domain.Subscription{}
	for _, s := range r.subs {
		if s.CustomerStripeID == customerStripeID {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

// Upsert сохраняет подписку по stripe_id
func (r *InMemorySubscriptionRepository) Upsert(_ context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.subs[sub.StripeID]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.subs[sub.StripeID] = *sub
	return nil
}
