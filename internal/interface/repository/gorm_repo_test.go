package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aerorelay-service/internal/domain/entity"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestJourneyRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormJourneyRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "journeys" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepository_FindActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormJourneyRepository(db)

	updated := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "journeys" WHERE status IN \(\$1,\$2,\$3\) AND \(current_phase IS NULL OR current_phase NOT IN \(\$4,\$5,\$6\)\) ORDER BY updated_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "flight_id", "current_phase", "status", "gate", "terminal", "version", "metadata", "updated_at"}).
			AddRow("j-1", "u-1", "f-1", nil, "scheduled", "", "", 3, `{"lastCarrierStatus":"S"}`, updated))
	mock.ExpectQuery(`SELECT \* FROM "flights" WHERE "flights"."id" = \$1`).
		WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "airline_id", "carrier_code", "flight_number"}).
			AddRow("f-1", nil, "AA", "100"))

	journeys, err := repo.FindActive(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, journeys, 1)

	j := journeys[0]
	assert.Equal(t, "j-1", j.ID)
	assert.Equal(t, "u-1", j.UserID)
	assert.Equal(t, entity.Phase(""), j.CurrentPhase)
	assert.Equal(t, int64(3), j.Version)
	assert.Equal(t, "S", j.Metadata["lastCarrierStatus"])
	require.NotNil(t, j.Flight)
	assert.Equal(t, "AA100", j.Flight.Code())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepository_ApplyPollUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormJourneyRepository(db)

	phase := entity.PhaseBoarding
	status := entity.StatusScheduled
	gate := "B12"
	journey := &entity.Journey{ID: "j-1", Version: 4}

	mock.ExpectExec(`UPDATE "journeys" SET "current_phase"=\$1,"gate"=\$2,"status"=\$3,"updated_at"=\$4,"version"=version \+ 1 WHERE id = \$5 AND version = \$6`).
		WithArgs("boarding", "B12", "scheduled", sqlmock.AnyArg(), "j-1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyPollUpdate(context.Background(), journey, entity.JourneyChanges{
		Phase:  &phase,
		Status: &status,
		Gate:   &gate,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(5), journey.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepository_ApplyPollUpdateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormJourneyRepository(db)

	gate := "C1"
	journey := &entity.Journey{ID: "j-1", Version: 4}

	mock.ExpectExec(`UPDATE "journeys" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyPollUpdate(context.Background(), journey, entity.JourneyChanges{Gate: &gate}, time.Now())
	assert.ErrorIs(t, err, entity.ErrVersionConflict)
	assert.Equal(t, int64(4), journey.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepository_UpdatePhaseNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormJourneyRepository(db)

	mock.ExpectExec(`UPDATE "journeys" SET "current_phase"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePhase(context.Background(), "missing", entity.PhaseDeparted, nil, time.Now())
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormUserRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fcm_token", "push_token"}).
			AddRow("u-1", nil, "legacy-token"))

	user, err := repo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", user.DeviceToken())

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id IN \(\$1,\$2\)`).
		WithArgs("u-1", "u-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fcm_token"}).
			AddRow("u-1", "fcm-1"))

	users, err := repo.FindByIDs(context.Background(), []string{"u-1", "u-2"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "fcm-1", users[0].DeviceToken())

	users, err = repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyEventRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormJourneyEventRepository(db)

	mock.ExpectExec(`INSERT INTO "journey_events"`).
		WithArgs(sqlmock.AnyArg(), "j-1", entity.EventPhaseChange, "Phase Changed", "Phase changed from boarding to departed", `{"newPhase":"departed"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &entity.JourneyEvent{
		JourneyID:   "j-1",
		EventType:   entity.EventPhaseChange,
		Title:       "Phase Changed",
		Description: "Phase changed from boarding to departed",
		Metadata:    map[string]interface{}{"newPhase": "departed"},
	}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.OccurredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAirlineRepository_FindByCodes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormAirlineRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "m_airlines" WHERE code IN \(\$1,\$2\) AND "m_airlines"."deleted_at" IS NULL`).
		WithArgs("BA", "ZZ").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name"}).AddRow(7, "ba", "British Airways"))

	airlines, err := repo.FindByCodes(context.Background(), []string{" ba ", "zz"})
	require.NoError(t, err)
	require.Len(t, airlines, 1)
	assert.Equal(t, uint(7), airlines["BA"].ID)
	assert.Equal(t, "British Airways", airlines["BA"].Name)
	assert.Nil(t, airlines["ZZ"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAirlineRepository_FindByCodesEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormAirlineRepository(db)

	airlines, err := repo.FindByCodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, airlines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardRepository_SaveSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormLeaderboardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "leaderboard_snapshots"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "leaderboard_rankings"`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO "leaderboard_metrics"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	snapshot := &entity.LeaderboardSnapshot{Label: "economy upload", TravelClass: "economy", Source: entity.SnapshotSourceManual}
	rankings := []*entity.LeaderboardRanking{
		{AirlineID: 1, Category: "overall", Rank: 1, LeaderboardScore: 9.1,
			Metrics: []entity.LeaderboardMetric{{Name: "wifi", Value: 4.5}}},
		{AirlineID: 2, Category: "overall", Rank: 2, LeaderboardScore: 8.7},
	}

	require.NoError(t, repo.SaveSnapshot(context.Background(), snapshot, rankings))
	assert.NotEmpty(t, snapshot.ID)
	for _, r := range rankings {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, snapshot.ID, r.SnapshotID)
	}
	assert.Equal(t, rankings[0].ID, rankings[0].Metrics[0].RankingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardRepository_SaveSnapshotRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormLeaderboardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "leaderboard_snapshots"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "leaderboard_rankings"`).
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.SaveSnapshot(context.Background(), &entity.LeaderboardSnapshot{TravelClass: "economy"},
		[]*entity.LeaderboardRanking{{AirlineID: 99, Category: "overall", Rank: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create rankings")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardRepository_Activate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormLeaderboardRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "leaderboard_snapshots" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "travel_class"}).AddRow("s-2", "economy"))
	mock.ExpectExec(`UPDATE "leaderboard_rankings" SET "is_active"=\$1 WHERE snapshot_id IN \(SELECT id FROM "leaderboard_snapshots"`).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(`UPDATE "leaderboard_snapshots" SET "is_active"=\$1 WHERE travel_class = \$2 AND id <> \$3`).
		WithArgs(false, "economy", "s-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "leaderboard_rankings" SET "is_active"=\$1 WHERE snapshot_id = \$2`).
		WithArgs(true, "s-2").
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(`UPDATE "leaderboard_snapshots" SET "is_active"=\$1 WHERE id = \$2`).
		WithArgs(true, "s-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Activate(context.Background(), "s-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardRepository_ActivateUnknown(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormLeaderboardRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "leaderboard_snapshots"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Activate(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
