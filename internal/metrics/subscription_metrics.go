package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для метки result
const (
	ResultSuccess  = "success"
	ResultDeclined = "declined"
	ResultRejected = "rejected"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// SubscriptionMetrics интерфейс для метрик операций над подписками
type SubscriptionMetrics interface {
	IncOperation(operation, result string)
	ObserveBillingLatency(operation string, d time.Duration)
	IncWebhookEvent(eventType string)
}

type subscriptionMetrics struct {
	operations     *prometheus.CounterVec
	billingLatency *prometheus.HistogramVec
	webhookEvents  *prometheus.CounterVec
}

// NewSubscriptionMetrics регистрирует метрики подписок в registry
func NewSubscriptionMetrics(registry prometheus.Registerer) SubscriptionMetrics {
	factory := promauto.With(registry)
	return &subscriptionMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_operations_total",
				Help: "The total number of subscription operations by result",
			},
			[]string{"operation", "result"},
		),
		billingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_request_duration_seconds",
				Help:    "Latency of billing provider calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "The total number of received billing webhook events",
			},
			[]string{"type"},
		),
	}
}

func (m *subscriptionMetrics) IncOperation(operation, result string) {
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *subscriptionMetrics) ObserveBillingLatency(operation string, d time.Duration) {
	m.billingLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *subscriptionMetrics) IncWebhookEvent(eventType string) {
	m.webhookEvents.WithLabelValues(eventType).Inc()
}

type noopSubscriptionMetrics struct{}

// NewNoopSubscriptionMetrics возвращает метрики, которые ничего не записывают
func NewNoopSubscriptionMetrics() SubscriptionMetrics { return noopSubscriptionMetrics{} }

func (noopSubscriptionMetrics) IncOperation(string, string)                 {}
func (noopSubscriptionMetrics) ObserveBillingLatency(string, time.Duration) {}
func (noopSubscriptionMetrics) IncWebhookEvent(string)                      {}
