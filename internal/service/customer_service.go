package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-service/internal/billing"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

// CustomerService сопоставляет подписчика с его биллинг-аккаунтом
type CustomerService interface {
	// GetOrCreate возвращает Customer подписчика, создавая его у провайдера при первом обращении.
	GetOrCreate(ctx context.Context, subscriber domain.Subscriber) (*domain.Customer, error)
}

type customerService struct {
	repo    repository.CustomerRepository
	billing billing.Gateway
	log     *logger.Logger
}

// NewCustomerService создает новый сервис для работы с клиентами
func NewCustomerService(repo repository.CustomerRepository, gateway billing.Gateway, log *logger.Logger) CustomerService {
	return &customerService{
		repo:    repo,
		billing: gateway,
		log:     log,
	}
}

func (s *customerService) GetOrCreate(ctx context.Context, subscriber domain.Subscriber) (*domain.Customer, error) {
	if subscriber.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	customer, err := s.repo.GetBySubscriberID(ctx, subscriber.ID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	stripeID, err := s.billing.CreateCustomer(ctx, subscriber.ID, subscriber.Email)
	if err != nil {
		return nil, err
	}

	customer = domain.NewCustomer(subscriber.ID, stripeID, subscriber.Email)
	if err := s.repo.Create(ctx, customer); err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, fmt.Errorf("failed to save customer: %w", err)
		}
		// Параллельный запрос успел создать клиента раньше, берем его запись
		s.log.Warnw("Customer created concurrently, using existing record",
			"subscriberID", subscriber.ID, "orphanStripeCustomerID", stripeID)
		return s.repo.GetBySubscriberID(ctx, subscriber.ID)
	}

	s.log.Infow("Customer created", "subscriberID", subscriber.ID, "stripeCustomerID", stripeID)
	return customer, nil
}
