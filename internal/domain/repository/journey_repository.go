package repository

import (
	"context"
	"time"

	"aerorelay-service/internal/domain/entity"
)

// JourneyRepository defines the interface for tracked journey storage
type JourneyRepository interface {
	// FindByID returns the journey with its flight, or entity.ErrNotFound
	FindByID(ctx context.Context, id string) (*entity.Journey, error)
	// FindActive returns up to limit pollable journeys, most recently updated first
	FindActive(ctx context.Context, limit int) ([]*entity.Journey, error)
	// ApplyPollUpdate writes changes if the stored version still equals journey.Version.
	// Returns entity.ErrVersionConflict otherwise.
	ApplyPollUpdate(ctx context.Context, journey *entity.Journey, changes entity.JourneyChanges, at time.Time) error
	// UpdatePhase sets the phase, and the status when non-nil
	UpdatePhase(ctx context.Context, id string, phase entity.Phase, status *entity.LifecycleStatus, at time.Time) error
}

// JourneyEventRepository defines the interface for the journey timeline
type JourneyEventRepository interface {
	Create(ctx context.Context, event *entity.JourneyEvent) error
}
