package repository

import (
	"context"

	"aerorelay-service/internal/domain/entity"
)

// LeaderboardRepository defines the interface for leaderboard snapshots
type LeaderboardRepository interface {
	// SaveSnapshot writes the snapshot, its rankings and their metrics in one transaction.
	// IDs are filled in on success.
	SaveSnapshot(ctx context.Context, snapshot *entity.LeaderboardSnapshot, rankings []*entity.LeaderboardRanking) error
	// Activate marks the snapshot active and deactivates older snapshots of the same travel class
	Activate(ctx context.Context, snapshotID string) error
}
