package billing

import (
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"

	"github.com/stripe/stripe-go/v78"
)

// ToDomainSubscription преобразует подписку Stripe в доменную модель
func ToDomainSubscription(s *stripe.Subscription) *domain.Subscription {
	if s == nil {
		return nil
	}

	sub := &domain.Subscription{
		StripeID:           s.ID,
		Status:             domain.SubscriptionStatus(s.Status),
		StartDate:          unixPtr(s.StartDate),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         unixPtr(s.CanceledAt),
		EndedAt:            unixPtr(s.EndedAt),
		TrialStart:         unixPtr(s.TrialStart),
		TrialEnd:           unixPtr(s.TrialEnd),
		Metadata:           domain.Metadata(s.Metadata),
		CreatedAt:          unixTime(s.Created),
	}
	if s.Customer != nil {
		sub.CustomerStripeID = s.Customer.ID
	}
	if s.ApplicationFeePercent > 0 {
		fee := s.ApplicationFeePercent
		sub.ApplicationFeePercent = &fee
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		sub.Quantity = item.Quantity
		switch {
		case item.Plan != nil:
			sub.Plan = item.Plan.ID
		case item.Price != nil:
			sub.Plan = item.Price.ID
		}
	}
	return sub
}

func unixTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := unixTime(ts)
	return &t
}
