package publish

import (
	"context"
	"fmt"

	"SolGate/internal/domain/models"
	"SolGate/pkg/kafka"
)

// KafkaSink publishes each signal as one message, keyed by mint so that
// consumers see per-token ordering.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaSink(producer *kafka.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, signals []*models.TradingSignal) error {
	msgs := make([]kafka.Message, 0, len(signals))
	for _, sig := range signals {
		key := sig.Mint
		if key == "" {
			key = sig.Signature
		}
		msgs = append(msgs, kafka.Message{Key: []byte(key), Value: sig})
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}
