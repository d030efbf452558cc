package service

import (
	"context"
	"sync"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// fakeGateway управляемая реализация billing.Gateway
type fakeGateway struct {
	mu sync.Mutex

	customerSeq int
	createErr   error

	attachErr     error
	subscribeErrs []error
	subscribed    *domain.Subscription
	invoiceErr    error
	cancelErr     error
	reactivateErr error
	getErr        error

	// current состояние подписок у провайдера по ID
	current map[string]*domain.Subscription

	calls       []string
	idemKeys    []string
	cancelAtEnd []bool
}

func (g *fakeGateway) record(call string) {
	g.calls = append(g.calls, call)
}

// remember сохраняет результат операции как текущее состояние у провайдера
func (g *fakeGateway) remember(sub *domain.Subscription) {
	if g.current == nil {
		g.current = make(map[string]*domain.Subscription)
	}
	stored := *sub
	g.current[sub.StripeID] = &stored
}

// state возвращает копию известного состояния подписки или шаблон subscribed
func (g *fakeGateway) state(id string) domain.Subscription {
	if cur, ok := g.current[id]; ok {
		return *cur
	}
	sub := *g.subscribed
	sub.StripeID = id
	return sub
}

func (g *fakeGateway) CreateCustomer(_ context.Context, subscriberID, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("create_customer")
	if g.createErr != nil {
		return "", g.createErr
	}
	g.customerSeq++
	return "cus_" + subscriberID, nil
}

func (g *fakeGateway) AttachPaymentSource(context.Context, string, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("attach")
	return g.attachErr
}

func (g *fakeGateway) Subscribe(_ context.Context, customerID, plan, key string) (*domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("subscribe")
	g.idemKeys = append(g.idemKeys, key)
	if len(g.subscribeErrs) > 0 {
		err := g.subscribeErrs[0]
		g.subscribeErrs = g.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	sub := *g.subscribed
	sub.CustomerStripeID = customerID
	sub.Plan = plan
	g.remember(&sub)
	return &sub, nil
}

func (g *fakeGateway) InvoicePending(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("invoice")
	return g.invoiceErr
}

func (g *fakeGateway) CancelSubscription(_ context.Context, id string, atPeriodEnd bool) (*domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("cancel")
	g.cancelAtEnd = append(g.cancelAtEnd, atPeriodEnd)
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	sub := g.state(id)
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = domain.SubscriptionStatusCanceled
	}
	g.remember(&sub)
	return &sub, nil
}

func (g *fakeGateway) ReactivateSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("reactivate")
	if g.reactivateErr != nil {
		return nil, g.reactivateErr
	}
	sub := g.state(id)
	sub.CancelAtPeriodEnd = false
	g.remember(&sub)
	return &sub, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("get")
	if g.getErr != nil {
		return nil, g.getErr
	}
	sub, ok := g.current[id]
	if !ok {
		return nil, &domain.BillingError{Operation: "get_subscription", Kind: domain.BillingErrorRejected, Code: "resource_missing"}
	}
	out := *sub
	return &out, nil
}

// recordingProducer запоминает опубликованные события
type recordingProducer struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingProducer) PublishSubscriptionEvent(_ context.Context, eventType string, _ *domain.Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

func (p *recordingProducer) Close() error { return nil }
