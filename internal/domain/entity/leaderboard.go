// internal/domain/entity/leaderboard.go
package entity

import "time"

// SnapshotSourceManual tags snapshots imported from an operator CSV
const SnapshotSourceManual = "manual_upload"

// Airline is the master-table carrier a ranking points at, keyed by IATA code
type Airline struct {
	ID   uint
	Code string
	Name string
}

// LeaderboardRow is one parsed line of a leaderboard CSV
type LeaderboardRow struct {
	Line             int
	AirlineIATA      string
	Category         string
	TravelClass      string
	Rank             int
	LeaderboardScore float64
	AvgRating        *float64
	ReviewCount      *int
	PositiveCount    *int
	NegativeCount    *int
	PositiveRatio    *float64
	Metrics          map[string]float64
}

// LeaderboardSnapshot groups the rankings imported in one run
type LeaderboardSnapshot struct {
	ID             string
	Label          string
	TravelClass    string
	Source         string
	ReportingStart *time.Time
	ReportingEnd   *time.Time
	Notes          string
	IsActive       bool
	CreatedAt      time.Time
}

// LeaderboardRanking is a ranked airline within a category of a snapshot
type LeaderboardRanking struct {
	ID               string
	SnapshotID       string
	AirlineID        uint
	Category         string
	TravelClass      string
	Rank             int
	LeaderboardScore float64
	AvgRating        *float64
	ReviewCount      *int
	PositiveCount    *int
	NegativeCount    *int
	PositiveRatio    *float64
	Metrics          []LeaderboardMetric
}

// LeaderboardMetric is a named numeric score attached to a ranking
type LeaderboardMetric struct {
	RankingID string
	Name      string
	Value     float64
}

// IngestReport summarises a leaderboard import
type IngestReport struct {
	SnapshotID string         `json:"snapshotId,omitempty"`
	Label      string         `json:"label,omitempty"`
	MetricKeys []string       `json:"metricKeys"`
	Rows       int            `json:"rows"`
	Rankings   int            `json:"rankings"`
	Metrics    int            `json:"metrics"`
	Categories map[string]int `json:"categories"`
	DryRun     bool           `json:"dryRun"`
}
