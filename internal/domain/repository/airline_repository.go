package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// AirlineRepository resolves IATA codes against the airline master table
type AirlineRepository interface {
	// FindByCodes returns the known airlines keyed by upper-case code; unknown codes are absent
	FindByCodes(ctx context.Context, codes []string) (map[string]*entity.Airline, error)
}
