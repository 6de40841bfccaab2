package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

// TransitionHandler reacts to a persisted journey transition
type TransitionHandler interface {
	HandleTransition(ctx context.Context, transition entity.JourneyTransition) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds transitions from a topic to a handler
type KafkaConsumer struct {
	reader  messageReader
	handler TransitionHandler
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewKafkaConsumer creates a consumer group member for topic
func NewKafkaConsumer(brokers []string, topic, groupID string, handler TransitionHandler, logger logger.Logger, m *metrics.Metrics) *KafkaConsumer {
	return newKafkaConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	}), handler, logger, m)
}

func newKafkaConsumer(reader messageReader, handler TransitionHandler, logger logger.Logger, m *metrics.Metrics) *KafkaConsumer {
	return &KafkaConsumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
		metrics: m,
	}
}

// Run consumes until ctx is cancelled. Messages are committed after handling,
// including ones the handler rejected, so a poison message cannot stall the group.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to commit message", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	var transition entity.JourneyTransition
	if err := json.Unmarshal(msg.Value, &transition); err != nil {
		c.metrics.ErrorsCount.WithLabelValues("decode_transition").Inc()
		c.logger.Error("Dropping malformed transition", "offset", msg.Offset, "error", err)
		return
	}

	if err := c.handler.HandleTransition(ctx, transition); err != nil {
		c.metrics.ErrorsCount.WithLabelValues("handle_transition").Inc()
		c.logger.Error("Failed to handle transition",
			"journeyId", transition.JourneyID,
			"offset", msg.Offset,
			"error", err)
	}
}

// Close leaves the consumer group
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
