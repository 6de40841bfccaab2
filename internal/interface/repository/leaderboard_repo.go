package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLeaderboardRepository implements the LeaderboardRepository interface
type GormLeaderboardRepository struct {
	db *gorm.DB
}

// NewGormLeaderboardRepository creates a new GORM leaderboard repository
func NewGormLeaderboardRepository(db *gorm.DB) repository.LeaderboardRepository {
	return &GormLeaderboardRepository{
		db: db,
	}
}

// LeaderboardSnapshots GORM model for database mapping
type LeaderboardSnapshots struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	Label                string     `gorm:"column:label"`
	TravelClass          string     `gorm:"column:travel_class"`
	Source               string     `gorm:"column:source"`
	ReportingPeriodStart *time.Time `gorm:"column:reporting_period_start;type:date"`
	ReportingPeriodEnd   *time.Time `gorm:"column:reporting_period_end;type:date"`
	Notes                *string    `gorm:"column:notes"`
	IsActive             bool       `gorm:"column:is_active"`
	CreatedAt            time.Time
}

// TableName overrides the default table name
func (LeaderboardSnapshots) TableName() string {
	return "leaderboard_snapshots"
}

// LeaderboardRankings GORM model for database mapping
type LeaderboardRankings struct {
	ID               string   `gorm:"column:id;primaryKey"`
	SnapshotID       string   `gorm:"column:snapshot_id"`
	AirlineID        uint     `gorm:"column:airline_id"`
	Category         string   `gorm:"column:category"`
	TravelClass      string   `gorm:"column:travel_class"`
	LeaderboardRank  int      `gorm:"column:leaderboard_rank"`
	LeaderboardScore float64  `gorm:"column:leaderboard_score"`
	AvgRating        *float64 `gorm:"column:avg_rating"`
	ReviewCount      *int     `gorm:"column:review_count"`
	PositiveCount    *int     `gorm:"column:positive_count"`
	NegativeCount    *int     `gorm:"column:negative_count"`
	PositiveRatio    *float64 `gorm:"column:positive_ratio"`
	IsActive         bool     `gorm:"column:is_active"`
}

// TableName overrides the default table name
func (LeaderboardRankings) TableName() string {
	return "leaderboard_rankings"
}

// LeaderboardMetrics GORM model for database mapping
type LeaderboardMetrics struct {
	ID          uint    `gorm:"primaryKey"`
	RankingID   string  `gorm:"column:ranking_id"`
	MetricKey   string  `gorm:"column:metric_key"`
	MetricValue float64 `gorm:"column:metric_value"`
}

// TableName overrides the default table name
func (LeaderboardMetrics) TableName() string {
	return "leaderboard_metrics"
}

const insertBatchSize = 200

// SaveSnapshot inserts the snapshot with its rankings and metrics, all inactive
func (r *GormLeaderboardRepository) SaveSnapshot(ctx context.Context, snapshot *entity.LeaderboardSnapshot, rankings []*entity.LeaderboardRanking) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	snapshotModel := LeaderboardSnapshots{
		ID:                   snapshot.ID,
		Label:                snapshot.Label,
		TravelClass:          snapshot.TravelClass,
		Source:               snapshot.Source,
		ReportingPeriodStart: snapshot.ReportingStart,
		ReportingPeriodEnd:   snapshot.ReportingEnd,
	}
	if snapshot.Notes != "" {
		notes := snapshot.Notes
		snapshotModel.Notes = &notes
	}

	rankingModels := make([]LeaderboardRankings, 0, len(rankings))
	var metricModels []LeaderboardMetrics
	for _, ranking := range rankings {
		if ranking.ID == "" {
			ranking.ID = uuid.NewString()
		}
		ranking.SnapshotID = snapshot.ID

		rankingModels = append(rankingModels, LeaderboardRankings{
			ID:               ranking.ID,
			SnapshotID:       snapshot.ID,
			AirlineID:        ranking.AirlineID,
			Category:         ranking.Category,
			TravelClass:      ranking.TravelClass,
			LeaderboardRank:  ranking.Rank,
			LeaderboardScore: ranking.LeaderboardScore,
			AvgRating:        ranking.AvgRating,
			ReviewCount:      ranking.ReviewCount,
			PositiveCount:    ranking.PositiveCount,
			NegativeCount:    ranking.NegativeCount,
			PositiveRatio:    ranking.PositiveRatio,
		})

		for i := range ranking.Metrics {
			ranking.Metrics[i].RankingID = ranking.ID
			metricModels = append(metricModels, LeaderboardMetrics{
				RankingID:   ranking.ID,
				MetricKey:   ranking.Metrics[i].Name,
				MetricValue: ranking.Metrics[i].Value,
			})
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&snapshotModel).Error; err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		if len(rankingModels) > 0 {
			if err := tx.CreateInBatches(&rankingModels, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to create rankings: %w", err)
			}
		}
		if len(metricModels) > 0 {
			if err := tx.CreateInBatches(&metricModels, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to create metrics: %w", err)
			}
		}
		snapshot.CreatedAt = snapshotModel.CreatedAt
		return nil
	})
}

// Activate makes the snapshot the only active one of its travel class
func (r *GormLeaderboardRepository) Activate(ctx context.Context, snapshotID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snapshot LeaderboardSnapshots
		if err := tx.Where("id = ?", snapshotID).First(&snapshot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("snapshot %s: %w", snapshotID, entity.ErrNotFound)
			}
			return err
		}

		others := tx.Model(&LeaderboardSnapshots{}).
			Select("id").
			Where("travel_class = ? AND id <> ?", snapshot.TravelClass, snapshotID)

		if err := tx.Model(&LeaderboardRankings{}).
			Where("snapshot_id IN (?)", others).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate rankings: %w", err)
		}
		if err := tx.Model(&LeaderboardSnapshots{}).
			Where("travel_class = ? AND id <> ?", snapshot.TravelClass, snapshotID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate snapshots: %w", err)
		}
		if err := tx.Model(&LeaderboardRankings{}).
			Where("snapshot_id = ?", snapshotID).
			Update("is_active", true).Error; err != nil {
			return fmt.Errorf("failed to activate rankings: %w", err)
		}
		if err := tx.Model(&LeaderboardSnapshots{}).
			Where("id = ?", snapshotID).
			Update("is_active", true).Error; err != nil {
			return fmt.Errorf("failed to activate snapshot: %w", err)
		}
		return nil
	})
}
