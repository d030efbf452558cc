package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Dhoini/subscription-service/pkg/logger"

	kafkaGo "github.com/segmentio/kafka-go"
)

// EnsureTopic создает топик событий, если его еще нет.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int, log *logger.Logger) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	broker := strings.TrimSpace(brokers[0])
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", broker)
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker", "broker", broker, "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	// Топики создаются только через контроллер кластера
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	ctrlConn, err := kafkaGo.DialContext(connCtx, "tcp", net.JoinHostPort(controller.Host, fmt.Sprint(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer ctrlConn.Close()

	existing, err := ctrlConn.ReadPartitions(topic)
	if err == nil && len(existing) > 0 {
		log.Debugw("Topic already exists", "topic", topic)
		return nil
	}

	err = ctrlConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafkaGo.TopicAlreadyExists) {
		log.Errorw("Failed to create topic", "topic", topic, "error", err)
		return fmt.Errorf("kafka create topic failed: %w", err)
	}

	log.Infow("Kafka topic is ready", "topic", topic)
	return nil
}
