package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Bhupin123/Sismicity/internal/config"
	"github.com/Bhupin123/Sismicity/internal/domain"
)

// FeatureProducer publishes raw USGS features to the source topic for the
// ingestion pipeline.
type FeatureProducer struct {
	writer *kafkago.Writer
}

// NewFeatureProducer creates a producer for the configured source topic.
func NewFeatureProducer(cfg *config.Config) *FeatureProducer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSourceTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &FeatureProducer{writer: w}
}

// Produce writes features keyed by feature id, so a re-fetched feature lands on
// the same partition as its earlier copy.
func (p *FeatureProducer) Produce(ctx context.Context, features []domain.RawFeature) error {
	if len(features) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, featureMessages(features)...); err != nil {
		return fmt.Errorf("produce features: %w", err)
	}
	return nil
}

func (p *FeatureProducer) Close() error {
	return p.writer.Close()
}

func featureMessages(features []domain.RawFeature) []kafkago.Message {
	msgs := make([]kafkago.Message, len(features))
	for i, f := range features {
		msgs[i] = kafkago.Message{
			Key:     []byte(f.ID),
			Value:   f.Payload,
			Headers: []kafkago.Header{{Key: "source", Value: []byte("usgs")}},
		}
	}
	return msgs
}
