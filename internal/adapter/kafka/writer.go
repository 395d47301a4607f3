package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Bhupin123/Sismicity/internal/config"
	"github.com/Bhupin123/Sismicity/internal/domain"
)

// NotificationWriter hands alert payloads to the delivery service through the
// alert topic. It implements pipeline.NotificationPublisher.
type NotificationWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotificationWriter creates a Kafka producer for the configured alert topic.
func NewNotificationWriter(cfg *config.Config, logger *slog.Logger) *NotificationWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &NotificationWriter{writer: w, logger: logger}
}

// PublishNotifications writes all notifications in a single WriteMessages call.
// Messages are keyed by subscription so one subscriber's alerts stay ordered.
func (w *NotificationWriter) PublishNotifications(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(notifications))
	for i := range notifications {
		msg, err := serializeNotification(notifications[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write notifications: %w", err)
	}
	w.logger.Debug("notifications written", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *NotificationWriter) Close() error {
	return w.writer.Close()
}

func serializeNotification(n domain.Notification) (kafkago.Message, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.SubscriptionID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(n.Severity)},
			{Key: "event_id", Value: []byte(n.EventID)},
			{Key: "occurred_at", Value: []byte(n.OccurredAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
