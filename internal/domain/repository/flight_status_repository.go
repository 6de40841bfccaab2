package repository

import (
	"context"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
)

// FlightStatusRepository defines the interface for the upstream flight status API
type FlightStatusRepository interface {
	FetchStatus(ctx context.Context, carrier, flightNumber string, departure time.Time) (*entity.UpstreamPayload, error)
}

// UpstreamError is a non-2xx answer of an upstream HTTP API
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the request may succeed when repeated
func (e *UpstreamError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
