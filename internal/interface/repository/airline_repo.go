package repository

import (
	"context"
	"fmt"
	"strings"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormAirlineRepository implements the AirlineRepository interface
type GormAirlineRepository struct {
	db *gorm.DB
}

// NewGormAirlineRepository creates a new GORM airline repository
func NewGormAirlineRepository(db *gorm.DB) repository.AirlineRepository {
	return &GormAirlineRepository{db: db}
}

// airlineRow maps the read-only m_airlines master table; soft-deleted carriers are skipped
type airlineRow struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"column:code"`
	Name      string `gorm:"column:name"`
	DeletedAt gorm.DeletedAt
}

func (airlineRow) TableName() string {
	return "m_airlines"
}

// FindByCodes loads every requested carrier in one query
func (r *GormAirlineRepository) FindByCodes(ctx context.Context, codes []string) (map[string]*entity.Airline, error) {
	found := make(map[string]*entity.Airline, len(codes))
	if len(codes) == 0 {
		return found, nil
	}

	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(code)))
	}

	var rows []airlineRow
	if err := r.db.WithContext(ctx).Where("code IN ?", normalized).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load airlines: %w", err)
	}

	for _, row := range rows {
		code := strings.ToUpper(row.Code)
		found[code] = &entity.Airline{ID: row.ID, Code: code, Name: row.Name}
	}
	return found, nil
}
