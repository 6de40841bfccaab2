package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// RawArchive stores untouched upstream payloads for later inspection
type RawArchive interface {
	Store(ctx context.Context, journeyID string, payload *entity.UpstreamPayload) (string, error)
}
