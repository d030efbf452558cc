package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Stripe отвечает этим кодом, если у клиента нет позиций для выставления счета
const errorCodeNothingToInvoice stripe.ErrorCode = "invoice_no_customer_line_items"

// stripeGateway реализует Gateway поверх stripe-go.
type stripeGateway struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeGateway создает шлюз с API ключом Stripe.
// backends можно передать для тестов (nil - стандартные).
func NewStripeGateway(apiKey string, backends *stripe.Backends, log *logger.Logger) Gateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &stripeGateway{
		client: sc,
		log:    log.Named("stripe"),
	}
}

// CreateCustomer создает нового клиента в Stripe.
func (g *stripeGateway) CreateCustomer(ctx context.Context, subscriberID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			MetadataSubscriberKey: subscriberID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx

	cus, err := g.client.Customers.New(params)
	if err != nil {
		return "", g.fail("create_customer", err)
	}

	g.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "subscriberID", subscriberID)
	return cus.ID, nil
}

// AttachPaymentSource привязывает платежное средство к клиенту.
// PaymentMethod (pm_...) прикрепляется и становится методом по умолчанию для счетов,
// остальные токены (tok_..., src_...) устанавливаются как source клиента.
func (g *stripeGateway) AttachPaymentSource(ctx context.Context, customerID, token string) error {
	if strings.HasPrefix(token, "pm_") {
		attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
		attach.Context = ctx
		if _, err := g.client.PaymentMethods.Attach(token, attach); err != nil {
			return g.fail("attach_payment_method", err)
		}

		params := &stripe.CustomerParams{
			InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(token),
			},
		}
		params.Context = ctx
		if _, err := g.client.Customers.Update(customerID, params); err != nil {
			return g.fail("set_default_payment_method", err)
		}
		g.log.Infow("Payment method attached", "stripeCustomerID", customerID)
		return nil
	}

	params := &stripe.CustomerParams{Source: stripe.String(token)}
	params.Context = ctx
	if _, err := g.client.Customers.Update(customerID, params); err != nil {
		return g.fail("add_source", err)
	}
	g.log.Infow("Payment source added", "stripeCustomerID", customerID)
	return nil
}

// Subscribe создает подписку клиента на план.
func (g *stripeGateway) Subscribe(ctx context.Context, customerID, plan, idempotencyKey string) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(plan)},
		},
		PaymentBehavior: stripe.String("error_if_incomplete"),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}

	s, err := g.client.Subscriptions.New(params)
	if err != nil {
		return nil, g.fail("subscribe", err)
	}

	g.log.Infow("Stripe subscription created", "stripeSubscriptionID", s.ID, "status", string(s.Status))
	return g.mapped(s, customerID), nil
}

// InvoicePending выставляет счет по накопленным позициям клиента и сразу оплачивает его.
// Отсутствие позиций ошибкой не считается.
func (g *stripeGateway) InvoicePending(ctx context.Context, customerID string) error {
	params := &stripe.InvoiceParams{
		Customer:                    stripe.String(customerID),
		PendingInvoiceItemsBehavior: stripe.String("include"),
	}
	params.Context = ctx

	inv, err := g.client.Invoices.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == errorCodeNothingToInvoice {
			g.log.Debugw("Nothing to invoice", "stripeCustomerID", customerID)
			return nil
		}
		return g.fail("create_invoice", err)
	}
	if inv.AmountDue == 0 {
		g.log.Debugw("Invoice has nothing due, skipping payment", "invoiceID", inv.ID)
		return nil
	}

	pay := &stripe.InvoicePayParams{}
	pay.Context = ctx
	if _, err := g.client.Invoices.Pay(inv.ID, pay); err != nil {
		return g.fail("pay_invoice", err)
	}
	g.log.Infow("Pending items invoiced", "stripeCustomerID", customerID, "invoiceID", inv.ID, "amountDue", inv.AmountDue)
	return nil
}

// CancelSubscription отменяет подписку.
func (g *stripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*domain.Subscription, error) {
	var (
		s   *stripe.Subscription
		err error
	)
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		s, err = g.client.Subscriptions.Update(subscriptionID, params)
	} else {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		s, err = g.client.Subscriptions.Cancel(subscriptionID, params)
	}
	if err != nil {
		return nil, g.fail("cancel_subscription", err)
	}

	g.log.Infow("Stripe subscription canceled", "stripeSubscriptionID", subscriptionID, "atPeriodEnd", atPeriodEnd)
	return g.mapped(s, ""), nil
}

// GetSubscription загружает подписку из Stripe.
func (g *stripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := g.client.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, g.fail("get_subscription", err)
	}
	return g.mapped(s, ""), nil
}

// ReactivateSubscription снимает флаг cancel_at_period_end.
func (g *stripeGateway) ReactivateSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
	params.Context = ctx

	s, err := g.client.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, g.fail("reactivate_subscription", err)
	}

	g.log.Infow("Stripe subscription reactivated", "stripeSubscriptionID", subscriptionID)
	return g.mapped(s, ""), nil
}

func (g *stripeGateway) mapped(s *stripe.Subscription, customerID string) *domain.Subscription {
	sub := ToDomainSubscription(s)
	if sub.CustomerStripeID == "" {
		sub.CustomerStripeID = customerID
	}
	return sub
}

func (g *stripeGateway) fail(operation string, err error) error {
	be := classifyError(operation, err)
	logBillingError(g.log, be)
	return be
}
