package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
)

func newTestPoller(journeys *fakeJourneyRepo, statuses *fakeStatusRepo, cfg PollerConfig) *FlightPoller {
	p := NewFlightPoller(journeys, statuses, cfg, logger.NewNopLogger(), newTestMetrics())
	p.now = fixedClock
	return p
}

func TestFlightPoller_NoActiveJourneys(t *testing.T) {
	p := newTestPoller(newFakeJourneyRepo(), newFakeStatusRepo(), PollerConfig{})

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, "No active journeys found", report.Message)
	assert.Equal(t, 0, report.Checked)
	assert.Empty(t, report.Results)
}

func TestFlightPoller_DefaultsAndLimit(t *testing.T) {
	journeys := newFakeJourneyRepo()
	p := newTestPoller(journeys, newFakeStatusRepo(), PollerConfig{})

	_, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100, journeys.activeLimit)
	assert.Equal(t, 5, p.cfg.Concurrency)
}

func TestFlightPoller_SkipsUnpollableFlights(t *testing.T) {
	noFlight := testJourney("j-1", "GA", "404")
	noFlight.Flight = nil
	noDate := testJourney("j-2", "GA", "405")
	noDate.Flight.ScheduledDeparture = nil

	statuses := newFakeStatusRepo()
	p := newTestPoller(newFakeJourneyRepo(noFlight, noDate), statuses, PollerConfig{})

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "No active journeys found", report.Message)
	assert.Equal(t, 0, statuses.calls)
}

func TestFlightPoller_UpdatesChangedJourney(t *testing.T) {
	journey := testJourney("j-1", "GA", "404")
	journeys := newFakeJourneyRepo(journey)
	statuses := newFakeStatusRepo()
	statuses.bodies["GA404"] = statusBody("Boarding", "B7", "3")
	archive := &fakeArchive{}
	publisher := &fakePublisher{}

	p := newTestPoller(journeys, statuses, PollerConfig{}).WithArchive(archive).WithPublisher(publisher)

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Summary.Updated)
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, entity.OutcomeUpdated, res.Status)
	assert.Equal(t, entity.PhaseBoarding, res.Phase)
	assert.Equal(t, "scheduled", res.NewStatus)
	assert.Equal(t, "B7", res.Gate)
	assert.Equal(t, "3", res.Terminal)

	require.Len(t, journeys.applied, 1)
	applied := journeys.applied[0]
	assert.Equal(t, int64(3), applied.version)
	require.NotNil(t, applied.changes.Phase)
	assert.Equal(t, entity.PhaseBoarding, *applied.changes.Phase)
	// status unchanged: pre_check_in and boarding are both scheduled
	assert.Nil(t, applied.changes.Status)
	assert.Equal(t, "B7", *applied.changes.Gate)
	assert.Equal(t, "3", *applied.changes.Terminal)

	meta := applied.changes.Metadata
	assert.Equal(t, "12A", meta["seat"])
	assert.Equal(t, "Boarding", meta["lastCarrierStatus"])
	assert.Equal(t, fixedNow.Format(time.RFC3339), meta["lastCarrierUpdate"])
	assert.NotNil(t, meta["flightStatuses"])

	assert.Equal(t, []string{"raw/j-1"}, archive.keys)

	require.Len(t, publisher.transitions, 1)
	tr := publisher.transitions[0]
	assert.Equal(t, "user-j-1", tr.UserID)
	assert.Equal(t, entity.PhasePreCheckIn, tr.OldPhase)
	assert.Equal(t, entity.PhaseBoarding, tr.NewPhase)
	assert.True(t, tr.PhaseChanged())
	assert.True(t, tr.GateChanged())
	assert.True(t, tr.TerminalChanged())
	assert.Equal(t, fixedNow, tr.OccurredAt)
}

func TestFlightPoller_NoChangeWritesNothing(t *testing.T) {
	journey := testJourney("j-1", "GA", "404")
	journey.Gate = "B7"
	journeys := newFakeJourneyRepo(journey)
	statuses := newFakeStatusRepo()
	// empty gate and terminal never count as a change
	statuses.bodies["GA404"] = statusBody("Scheduled", "", "")
	publisher := &fakePublisher{}

	p := newTestPoller(journeys, statuses, PollerConfig{}).WithPublisher(publisher)

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.NoChange)
	assert.Equal(t, entity.OutcomeNoChange, report.Results[0].Status)
	assert.Equal(t, entity.PhasePreCheckIn, report.Results[0].Phase)
	assert.Empty(t, journeys.applied)
	assert.Empty(t, publisher.transitions)
}

func TestFlightPoller_UpstreamErrorsAreSkipped(t *testing.T) {
	journeys := newFakeJourneyRepo(testJourney("j-1", "GA", "404"), testJourney("j-2", "QZ", "7510"))
	statuses := newFakeStatusRepo()
	statuses.errs["GA404"] = &repository.UpstreamError{StatusCode: 429, Body: "rate limited"}
	statuses.bodies["QZ7510"] = `{"error":"unexpected"}`

	p := newTestPoller(journeys, statuses, PollerConfig{})

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Errors)
	assert.Contains(t, report.Results[0].Error, "429")
	assert.Equal(t, "Failed to parse upstream data", report.Results[1].Error)
	assert.Empty(t, journeys.applied)
}

func TestFlightPoller_VersionConflictIsSkipped(t *testing.T) {
	journeys := newFakeJourneyRepo(testJourney("j-1", "GA", "404"))
	journeys.applyErr["j-1"] = fmt.Errorf("journey j-1: %w", entity.ErrVersionConflict)
	statuses := newFakeStatusRepo()
	statuses.bodies["GA404"] = statusBody("Departed", "", "")
	publisher := &fakePublisher{}

	p := newTestPoller(journeys, statuses, PollerConfig{}).WithPublisher(publisher)

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, entity.OutcomeSkipped, report.Results[0].Status)
	assert.Empty(t, publisher.transitions)
}

func TestFlightPoller_WriteFailureIsError(t *testing.T) {
	journeys := newFakeJourneyRepo(testJourney("j-1", "GA", "404"))
	journeys.applyErr["j-1"] = errors.New("connection reset")
	statuses := newFakeStatusRepo()
	statuses.bodies["GA404"] = statusBody("Landed", "", "")

	p := newTestPoller(journeys, statuses, PollerConfig{})

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, "connection reset", report.Results[0].Error)
}

func TestFlightPoller_PanicIsolatedToOneJourney(t *testing.T) {
	journeys := newFakeJourneyRepo(testJourney("j-1", "GA", "404"), testJourney("j-2", "QZ", "7510"))
	statuses := newFakeStatusRepo()
	statuses.panics["GA404"] = true
	statuses.bodies["QZ7510"] = statusBody("Cancelled", "", "")

	p := newTestPoller(journeys, statuses, PollerConfig{})

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Updated)
	assert.Contains(t, report.Results[0].Error, "panic")
	assert.Equal(t, entity.PhaseCancelled, report.Results[1].Phase)
	assert.Equal(t, "cancelled", report.Results[1].NewStatus)
}

func TestFlightPoller_GroupsRunSequentially(t *testing.T) {
	var all []*entity.Journey
	for i := 0; i < 5; i++ {
		all = append(all, testJourney(fmt.Sprintf("j-%d", i), "GA", fmt.Sprintf("%d", 400+i)))
	}
	journeys := newFakeJourneyRepo(all...)
	statuses := newFakeStatusRepo()

	var mu sync.Mutex
	inFlight, peak := 0, 0
	statuses.onFetch = func(string) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	p := newTestPoller(journeys, statuses, PollerConfig{Concurrency: 2, GroupDelay: time.Millisecond})

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Checked)
	assert.Equal(t, 5, statuses.calls)
	assert.LessOrEqual(t, peak, 2)
	for i, res := range report.Results {
		assert.Equal(t, fmt.Sprintf("j-%d", i), res.JourneyID)
	}
}

func TestFlightPoller_CancelledBetweenGroups(t *testing.T) {
	journeys := newFakeJourneyRepo(testJourney("j-1", "GA", "401"), testJourney("j-2", "GA", "402"))
	statuses := newFakeStatusRepo()

	ctx, cancel := context.WithCancel(context.Background())
	statuses.onFetch = func(string) { cancel() }

	p := newTestPoller(journeys, statuses, PollerConfig{Concurrency: 1, GroupDelay: time.Minute})

	report, err := p.RunBatch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, statuses.calls)
	assert.Equal(t, "poll cancelled", report.Results[1].Error)
}

func TestFlightPoller_ResultSamplesTruncated(t *testing.T) {
	var all []*entity.Journey
	for i := 0; i < 4; i++ {
		all = append(all, testJourney(fmt.Sprintf("j-%d", i), "GA", fmt.Sprintf("%d", 400+i)))
	}
	m := newTestMetrics()
	p := NewFlightPoller(newFakeJourneyRepo(all...), newFakeStatusRepo(), PollerConfig{ResultSamples: 2}, logger.NewNopLogger(), m)

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 4, report.Skipped)
	assert.Len(t, report.Results, 2)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.JourneysPolled.WithLabelValues(entity.OutcomeSkipped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollRuns))
}

func TestFlightPoller_LeaseHeldElsewhere(t *testing.T) {
	statuses := newFakeStatusRepo()
	lock := &fakeLock{held: true}
	p := newTestPoller(newFakeJourneyRepo(testJourney("j-1", "GA", "404")), statuses, PollerConfig{}).WithLock(lock)

	report, err := p.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "poll already running", report.Message)
	assert.Equal(t, 0, statuses.calls)
	assert.False(t, lock.released)
}

func TestFlightPoller_LeaseReleased(t *testing.T) {
	lock := &fakeLock{}
	p := newTestPoller(newFakeJourneyRepo(), newFakeStatusRepo(), PollerConfig{}).WithLock(lock)

	_, err := p.RunBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, lock.released)
}

func TestFlightPoller_FindActiveFailure(t *testing.T) {
	journeys := newFakeJourneyRepo()
	journeys.findErr = errors.New("db down")
	p := newTestPoller(journeys, newFakeStatusRepo(), PollerConfig{})

	_, err := p.RunBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
