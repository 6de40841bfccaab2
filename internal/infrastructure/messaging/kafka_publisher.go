package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

const sinkKafka = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes journey transitions to a Kafka topic keyed by journey id,
// so transitions of one journey stay ordered within a partition
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewKafkaPublisher creates a transition publisher for brokers
func NewKafkaPublisher(brokers []string, topic string, logger logger.Logger, m *metrics.Metrics) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, topic, logger, m)
}

func newKafkaPublisher(writer messageWriter, topic string, logger logger.Logger, m *metrics.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		topic:   topic,
		logger:  logger,
		metrics: m,
	}
}

var _ repository.TransitionPublisher = (*KafkaPublisher)(nil)

// Publish encodes the transition as JSON
func (p *KafkaPublisher) Publish(ctx context.Context, transition entity.JourneyTransition) error {
	value, err := json.Marshal(transition)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(transition.JourneyID),
		Value: value,
	})
	if err != nil {
		p.metrics.TransitionsPublished.WithLabelValues(sinkKafka, "failed").Inc()
		return fmt.Errorf("failed to publish transition to %s: %w", p.topic, err)
	}

	p.metrics.TransitionsPublished.WithLabelValues(sinkKafka, "ok").Inc()
	p.logger.Debug("Transition published", "topic", p.topic, "journeyId", transition.JourneyID)
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
