package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Типы событий жизненного цикла подписки
const (
	EventSubscriptionCreated     = "subscription.created"
	EventSubscriptionCanceled    = "subscription.canceled"
	EventSubscriptionReactivated = "subscription.reactivated"
	EventSubscriptionSynced      = "subscription.synced"
)

// DefaultTopic топик событий подписок по умолчанию
const DefaultTopic = "subscription_events"

// SubscriptionEvent тело сообщения в Kafka
type SubscriptionEvent struct {
	EventID      string               `json:"event_id"`
	Type         string               `json:"type"`
	OccurredAt   time.Time            `json:"occurred_at"`
	Subscription *domain.Subscription `json:"subscription"`
}

// Producer публикует события подписок.
type Producer interface {
	PublishSubscriptionEvent(ctx context.Context, eventType string, subscription *domain.Subscription) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic)
	return newProducer(writer, topic, log), nil
}

func newProducer(w messageWriter, topic string, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{writer: w, topic: topic, log: log}
}

// BuildMessage собирает сообщение. Ключ - ID клиента, чтобы события одного клиента шли по порядку.
func BuildMessage(eventType string, subscription *domain.Subscription, now time.Time) (kafka.Message, error) {
	event := SubscriptionEvent{
		EventID:      uuid.NewString(),
		Type:         eventType,
		OccurredAt:   now.UTC(),
		Subscription: subscription,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}
	return kafka.Message{
		Key:   []byte(subscription.CustomerStripeID),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}, nil
}

// PublishSubscriptionEvent отправляет событие подписки в топик продюсера.
func (k *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, eventType string, subscription *domain.Subscription) error {
	message, err := BuildMessage(eventType, subscription, time.Now())
	if err != nil {
		k.log.Errorw("Failed to build Kafka message", "error", err, "subscriptionID", subscription.StripeID)
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", k.topic, "subscriptionID", subscription.StripeID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", k.topic, "subscriptionID", subscription.StripeID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Infow("Subscription event published", "type", eventType, "topic", k.topic, "subscriptionID", subscription.StripeID)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer closed")
	return nil
}

// NoopProducer используется, когда брокеры не настроены
type NoopProducer struct {
	log *logger.Logger
}

// NewNoopProducer создает продюсер, который только логирует события
func NewNoopProducer(log *logger.Logger) *NoopProducer {
	return &NoopProducer{log: log}
}

func (p *NoopProducer) PublishSubscriptionEvent(_ context.Context, eventType string, subscription *domain.Subscription) error {
	p.log.Debugw("Kafka disabled, event dropped", "type", eventType, "subscriptionID", subscription.StripeID)
	return nil
}

func (p *NoopProducer) Close() error { return nil }
