package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubscriptionStatus статус подписки у биллинг-провайдера
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// Metadata произвольные пары ключ-значение, хранятся в jsonb
type Metadata map[string]string

// Value реализует driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan реализует sql.Scanner
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Subscription локальное отражение подписки биллинг-провайдера.
// Источник истины - провайдер, строка обновляется после каждой операции и по вебхукам.
type Subscription struct {
	StripeID              string             `db:"stripe_id" json:"id"`
	CustomerStripeID      string             `db:"customer_stripe_id" json:"customer"`
	Plan                  string             `db:"plan" json:"plan"`
	Status                SubscriptionStatus `db:"status" json:"status"`
	Quantity              int64              `db:"quantity" json:"quantity"`
	StartDate             *time.Time         `db:"start_date" json:"start,omitempty"`
	CurrentPeriodStart    time.Time          `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd      time.Time          `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd     bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CanceledAt            *time.Time         `db:"canceled_at" json:"canceled_at,omitempty"`
	EndedAt               *time.Time         `db:"ended_at" json:"ended_at,omitempty"`
	TrialStart            *time.Time         `db:"trial_start" json:"trial_start,omitempty"`
	TrialEnd              *time.Time         `db:"trial_end" json:"trial_end,omitempty"`
	ApplicationFeePercent *float64           `db:"application_fee_percent" json:"application_fee_percent,omitempty"`
	Metadata              Metadata           `db:"metadata" json:"metadata,omitempty"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// IsValid сообщает, считается ли подписка действующей на момент now.
// Подписка, отмененная в конце периода, действует до current_period_end.
func (s *Subscription) IsValid(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusUnpaid:
		return true
	case SubscriptionStatusIncompleteExpired:
		return false
	}
	return s.CancelAtPeriodEnd && s.CurrentPeriodEnd.After(now)
}

// IsReactivatable сообщает, можно ли снять отмену в конце периода.
func (s *Subscription) IsReactivatable(now time.Time) bool {
	return s.CancelAtPeriodEnd && s.Status != SubscriptionStatusCanceled && s.CurrentPeriodEnd.After(now)
}

// CurrentSubscription выбирает единственную действующую подписку из списка.
func CurrentSubscription(subs []Subscription, now time.Time) (*Subscription, error) {
	var current *Subscription
	for i := range subs {
		if !subs[i].IsValid(now) {
			continue
		}
		if current != nil {
			return nil, ErrMultipleSubscriptions
		}
		current = &subs[i]
	}
	if current == nil {
		return nil, ErrNoSubscription
	}
	return current, nil
}
