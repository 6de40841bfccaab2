package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// PushGateway delivers a single push message through one provider
type PushGateway interface {
	Provider() entity.PushProvider
	// Send returns the provider message id
	Send(ctx context.Context, msg entity.PushMessage) (string, error)
}
