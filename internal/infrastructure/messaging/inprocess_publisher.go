package messaging

import (
	"context"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/metrics"
)

const sinkInProcess = "inprocess"

// InProcessPublisher hands transitions straight to a handler in the same process
type InProcessPublisher struct {
	handler TransitionHandler
	metrics *metrics.Metrics
}

// NewInProcessPublisher is used when no broker is configured
func NewInProcessPublisher(handler TransitionHandler, m *metrics.Metrics) repository.TransitionPublisher {
	return &InProcessPublisher{handler: handler, metrics: m}
}

// Publish runs the handler synchronously
func (p *InProcessPublisher) Publish(ctx context.Context, transition entity.JourneyTransition) error {
	if err := p.handler.HandleTransition(ctx, transition); err != nil {
		p.metrics.TransitionsPublished.WithLabelValues(sinkInProcess, "failed").Inc()
		return err
	}
	p.metrics.TransitionsPublished.WithLabelValues(sinkInProcess, "ok").Inc()
	return nil
}
