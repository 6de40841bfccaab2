package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormJourneyRepository implements the JourneyRepository interface
type GormJourneyRepository struct {
	db *gorm.DB
}

// NewGormJourneyRepository creates a new GORM journey repository
func NewGormJourneyRepository(db *gorm.DB) repository.JourneyRepository {
	return &GormJourneyRepository{
		db: db,
	}
}

// Flights GORM model for database mapping
type Flights struct {
	ID                 string      `gorm:"column:id;primaryKey"`
	AirlineID          *uint       `gorm:"column:airline_id"`
	Airline            *airlineRow `gorm:"foreignKey:AirlineID"`
	CarrierCode        string      `gorm:"column:carrier_code"`
	FlightNumber       string      `gorm:"column:flight_number"`
	ScheduledDeparture *time.Time  `gorm:"column:scheduled_departure"`
	DepartureAirport   string      `gorm:"column:departure_airport"`
	ArrivalAirport     string      `gorm:"column:arrival_airport"`
	DepartureCity      string      `gorm:"column:departure_city"`
	ArrivalCity        string      `gorm:"column:arrival_city"`
	Gate               string      `gorm:"column:gate"`
	Terminal           string      `gorm:"column:terminal"`
}

// TableName overrides the default table name
func (Flights) TableName() string {
	return "flights"
}

// Journeys GORM model for database mapping
type Journeys struct {
	ID           string   `gorm:"column:id;primaryKey"`
	UserID       *string  `gorm:"column:user_id"`
	FlightID     *string  `gorm:"column:flight_id"`
	Flight       *Flights `gorm:"foreignKey:FlightID"`
	CurrentPhase *string  `gorm:"column:current_phase"`
	Status       string   `gorm:"column:status"`
	Gate         string   `gorm:"column:gate"`
	Terminal     string   `gorm:"column:terminal"`
	Version      int64    `gorm:"column:version"`
	Metadata     string   `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name
func (Journeys) TableName() string {
	return "journeys"
}

// FindByID finds a journey with its flight and airline
func (r *GormJourneyRepository) FindByID(ctx context.Context, id string) (*entity.Journey, error) {
	var journey Journeys
	result := r.db.WithContext(ctx).
		Preload("Flight").
		Preload("Flight.Airline").
		Where("id = ?", id).
		First(&journey)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("journey %s: %w", id, entity.ErrNotFound)
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return toJourneyEntity(&journey), nil
}

// FindActive finds journeys that still need polling, most recently updated first
func (r *GormJourneyRepository) FindActive(ctx context.Context, limit int) ([]*entity.Journey, error) {
	var journeys []Journeys
	result := r.db.WithContext(ctx).
		Preload("Flight").
		Preload("Flight.Airline").
		Where("status IN ?", lifecycleStrings(entity.PollableStatuses)).
		Where("current_phase IS NULL OR current_phase NOT IN ?", phaseStrings(entity.TerminalPhases)).
		Order("updated_at DESC").
		Limit(limit).
		Find(&journeys)

	if result.Error != nil {
		return nil, result.Error
	}

	// Convert to domain entities
	entities := make([]*entity.Journey, 0, len(journeys))
	for i := range journeys {
		entities = append(entities, toJourneyEntity(&journeys[i]))
	}

	return entities, nil
}

// ApplyPollUpdate writes only the changed columns, guarded by the version read earlier
func (r *GormJourneyRepository) ApplyPollUpdate(ctx context.Context, journey *entity.Journey, changes entity.JourneyChanges, at time.Time) error {
	updates := map[string]interface{}{
		"updated_at": at,
		"version":    gorm.Expr("version + 1"),
	}
	if changes.Phase != nil {
		updates["current_phase"] = string(*changes.Phase)
	}
	if changes.Status != nil {
		updates["status"] = string(*changes.Status)
	}
	if changes.Gate != nil {
		updates["gate"] = *changes.Gate
	}
	if changes.Terminal != nil {
		updates["terminal"] = *changes.Terminal
	}
	if changes.Metadata != nil {
		raw, err := json.Marshal(changes.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode journey metadata: %w", err)
		}
		updates["metadata"] = string(raw)
	}

	result := r.db.WithContext(ctx).
		Model(&Journeys{}).
		Where("id = ? AND version = ?", journey.ID, journey.Version).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.ErrVersionConflict
	}

	journey.Version++
	return nil
}

// UpdatePhase sets the phase of a journey, and its status when given
func (r *GormJourneyRepository) UpdatePhase(ctx context.Context, id string, phase entity.Phase, status *entity.LifecycleStatus, at time.Time) error {
	updates := map[string]interface{}{
		"current_phase": string(phase),
		"updated_at":    at,
		"version":       gorm.Expr("version + 1"),
	}
	if status != nil {
		updates["status"] = string(*status)
	}

	result := r.db.WithContext(ctx).
		Model(&Journeys{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("journey %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

func toJourneyEntity(j *Journeys) *entity.Journey {
	journey := &entity.Journey{
		ID:        j.ID,
		Status:    entity.LifecycleStatus(j.Status),
		Gate:      j.Gate,
		Terminal:  j.Terminal,
		Version:   j.Version,
		Metadata:  map[string]interface{}{},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.UserID != nil {
		journey.UserID = *j.UserID
	}
	if j.FlightID != nil {
		journey.FlightID = *j.FlightID
	}
	if j.CurrentPhase != nil {
		journey.CurrentPhase = entity.Phase(*j.CurrentPhase)
	}
	if j.Metadata != "" {
		// a malformed blob is treated as empty and overwritten on the next write
		_ = json.Unmarshal([]byte(j.Metadata), &journey.Metadata)
		if journey.Metadata == nil {
			journey.Metadata = map[string]interface{}{}
		}
	}
	if j.Flight != nil {
		journey.Flight = &entity.Flight{
			ID:                 j.Flight.ID,
			CarrierCode:        j.Flight.CarrierCode,
			FlightNumber:       j.Flight.FlightNumber,
			ScheduledDeparture: j.Flight.ScheduledDeparture,
			DepartureAirport:   j.Flight.DepartureAirport,
			ArrivalAirport:     j.Flight.ArrivalAirport,
			DepartureCity:      j.Flight.DepartureCity,
			ArrivalCity:        j.Flight.ArrivalCity,
			Gate:               j.Flight.Gate,
			Terminal:           j.Flight.Terminal,
		}
		if j.Flight.Airline != nil {
			journey.Flight.AirlineName = j.Flight.Airline.Name
		}
	}
	return journey
}

func lifecycleStrings(statuses []entity.LifecycleStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func phaseStrings(phases []entity.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}
