package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormJourneyEventRepository implements the JourneyEventRepository interface
type GormJourneyEventRepository struct {
	db *gorm.DB
}

// NewGormJourneyEventRepository creates a new GORM journey event repository
func NewGormJourneyEventRepository(db *gorm.DB) repository.JourneyEventRepository {
	return &GormJourneyEventRepository{
		db: db,
	}
}

// JourneyEvents GORM model for database mapping
type JourneyEvents struct {
	ID             string    `gorm:"column:id;primaryKey"`
	JourneyID      string    `gorm:"column:journey_id"`
	EventType      string    `gorm:"column:event_type"`
	Title          string    `gorm:"column:title"`
	Description    string    `gorm:"column:description"`
	Metadata       *string   `gorm:"column:metadata;type:jsonb"`
	EventTimestamp time.Time `gorm:"column:event_timestamp"`
}

// TableName overrides the default table name
func (JourneyEvents) TableName() string {
	return "journey_events"
}

// Create inserts a new journey event
func (r *GormJourneyEventRepository) Create(ctx context.Context, event *entity.JourneyEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	model := JourneyEvents{
		ID:             event.ID,
		JourneyID:      event.JourneyID,
		EventType:      event.EventType,
		Title:          event.Title,
		Description:    event.Description,
		EventTimestamp: event.OccurredAt,
	}
	if event.Metadata != nil {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metadata := string(raw)
		model.Metadata = &metadata
	}

	return r.db.WithContext(ctx).Create(&model).Error
}
