package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// NotificationEventRepository is the append-only audit log of dispatches
type NotificationEventRepository interface {
	Append(ctx context.Context, event *entity.NotificationEvent) error
	FindByJourney(ctx context.Context, journeyID string, limit int) ([]*entity.NotificationEvent, error)
}
