package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// TransitionPublisher hands persisted journey transitions to the notification side
type TransitionPublisher interface {
	Publish(ctx context.Context, transition entity.JourneyTransition) error
}

// PollLock guards against overlapping poller runs across instances
type PollLock interface {
	// TryAcquire returns false without error when another holder owns the lock
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
