package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// UserRepository defines the interface for user lookups
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*entity.User, error)
}
