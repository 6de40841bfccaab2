package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"
	"aerorelay-service/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const (
	msgNoActiveJourneys = "No active journeys found"
	msgPollRunning      = "poll already running"
	msgParseFailed      = "Failed to parse upstream data"
	msgPollCancelled    = "poll cancelled"
)

// PollerConfig tunes one batch run
type PollerConfig struct {
	MaxJourneys   int
	Concurrency   int
	GroupDelay    time.Duration
	ResultSamples int
}

// FlightPoller reconciles active journeys with the upstream flight status API
type FlightPoller struct {
	journeyRepo repository.JourneyRepository
	statusRepo  repository.FlightStatusRepository
	archive     repository.RawArchive
	publisher   repository.TransitionPublisher
	lock        repository.PollLock
	mapper      *StatusMapper
	cfg         PollerConfig
	logger      logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewFlightPoller creates a new batch poller
func NewFlightPoller(
	journeyRepo repository.JourneyRepository,
	statusRepo repository.FlightStatusRepository,
	cfg PollerConfig,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *FlightPoller {
	if cfg.MaxJourneys <= 0 {
		cfg.MaxJourneys = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ResultSamples <= 0 {
		cfg.ResultSamples = 20
	}

	return &FlightPoller{
		journeyRepo: journeyRepo,
		statusRepo:  statusRepo,
		mapper:      defaultMapper,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithArchive keeps every fetched payload in archive
func (p *FlightPoller) WithArchive(archive repository.RawArchive) *FlightPoller {
	p.archive = archive
	return p
}

// WithPublisher hands every persisted change to publisher
func (p *FlightPoller) WithPublisher(publisher repository.TransitionPublisher) *FlightPoller {
	p.publisher = publisher
	return p
}

// WithLock makes runs skip while another holder owns lock
func (p *FlightPoller) WithLock(lock repository.PollLock) *FlightPoller {
	p.lock = lock
	return p
}

// RunBatch checks up to MaxJourneys active journeys and writes what changed
func (p *FlightPoller) RunBatch(ctx context.Context) (*entity.BatchReport, error) {
	start := time.Now()
	p.metrics.PollRuns.Inc()
	defer func() {
		p.metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	report := &entity.BatchReport{Success: true, Results: []entity.PollResult{}}

	if p.lock != nil {
		acquired, err := p.lock.TryAcquire(ctx)
		if err != nil {
			p.metrics.ErrorsCount.WithLabelValues("poll_lock").Inc()
			return nil, err
		}
		if !acquired {
			p.logger.Info("Skipping poll, another run holds the lease")
			report.Message = msgPollRunning
			return report, nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.lock.Release(releaseCtx); err != nil {
				p.logger.Warn("Failed to release poll lease", "error", err)
			}
		}()
	}

	journeys, err := p.journeyRepo.FindActive(ctx, p.cfg.MaxJourneys)
	if err != nil {
		p.metrics.ErrorsCount.WithLabelValues("find_active_journeys").Inc()
		return nil, fmt.Errorf("failed to load active journeys: %w", err)
	}

	pollable := make([]*entity.Journey, 0, len(journeys))
	for _, j := range journeys {
		if j.Flight.Pollable() {
			pollable = append(pollable, j)
			continue
		}
		p.logger.Debug("Journey has no pollable flight", "journeyId", j.ID)
	}

	if len(pollable) == 0 {
		report.Message = msgNoActiveJourneys
		return report, nil
	}

	p.logger.Info("Polling journeys", "count", len(pollable), "concurrency", p.cfg.Concurrency)

	results := p.pollGroups(ctx, pollable)

	report.Checked = len(results)
	for _, res := range results {
		report.Tally(res)
		p.metrics.JourneysPolled.WithLabelValues(res.Status).Inc()
	}
	if len(results) > p.cfg.ResultSamples {
		results = results[:p.cfg.ResultSamples]
	}
	report.Results = results

	p.logger.Info("Poll finished",
		"checked", report.Checked,
		"updated", report.Updated,
		"noChange", report.NoChange,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"duration", time.Since(start).String())

	return report, nil
}

// pollGroups runs groups of Concurrency journeys in parallel, one group after another
func (p *FlightPoller) pollGroups(ctx context.Context, journeys []*entity.Journey) []entity.PollResult {
	results := make([]entity.PollResult, len(journeys))
	size := p.cfg.Concurrency

	next := 0
	for next < len(journeys) {
		end := next + size
		if end > len(journeys) {
			end = len(journeys)
		}

		var g errgroup.Group
		for i := next; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = p.pollOne(ctx, journeys[i])
				return nil
			})
		}
		_ = g.Wait()
		next = end

		if next >= len(journeys) || p.cfg.GroupDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			for i := next; i < len(journeys); i++ {
				results[i] = entity.PollResult{JourneyID: journeys[i].ID, Status: entity.OutcomeSkipped, Error: msgPollCancelled}
			}
			return results
		case <-time.After(p.cfg.GroupDelay):
		}
	}

	return results
}

// pollOne fetches, diffs and persists a single journey
func (p *FlightPoller) pollOne(ctx context.Context, journey *entity.Journey) (res entity.PollResult) {
	log := p.logger.With("journeyId", journey.ID, "flight", journey.Flight.Code())

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while polling journey", "panic", r)
			res = entity.PollResult{
				JourneyID: journey.ID,
				Status:    entity.OutcomeError,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	flight := journey.Flight
	payload, err := p.statusRepo.FetchStatus(ctx, flight.CarrierCode, flight.FlightNumber, *flight.ScheduledDeparture)
	if err != nil {
		log.Warn("Failed to fetch flight status", "error", err)
		return entity.PollResult{JourneyID: journey.ID, Status: entity.OutcomeSkipped, Error: err.Error()}
	}

	if p.archive != nil {
		if key, err := p.archive.Store(ctx, journey.ID, payload); err != nil {
			log.Warn("Failed to archive upstream payload", "error", err)
		} else {
			log.Debug("Upstream payload archived", "key", key)
		}
	}

	status, err := utils.ParseFlightStatus(payload.Body)
	if err != nil {
		log.Warn("Failed to parse flight status", "error", err)
		return entity.PollResult{JourneyID: journey.ID, Status: entity.OutcomeSkipped, Error: msgParseFailed}
	}

	at := p.now().UTC()
	changes, transition := p.diff(journey, status, at)
	if changes.Empty() {
		return entity.PollResult{JourneyID: journey.ID, Status: entity.OutcomeNoChange, Phase: transition.NewPhase}
	}

	if err := p.journeyRepo.ApplyPollUpdate(ctx, journey, changes, at); err != nil {
		if errors.Is(err, entity.ErrVersionConflict) {
			log.Info("Journey changed since it was read, skipping")
			return entity.PollResult{JourneyID: journey.ID, Status: entity.OutcomeSkipped, Error: err.Error()}
		}
		log.Error("Failed to update journey", "error", err)
		return entity.PollResult{JourneyID: journey.ID, Status: entity.OutcomeError, Error: err.Error()}
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, transition); err != nil {
			p.metrics.ErrorsCount.WithLabelValues("publish_transition").Inc()
			log.Error("Failed to publish journey transition", "error", err)
		}
	}

	log.Info("Journey updated",
		"phase", transition.NewPhase,
		"status", transition.NewStatus,
		"carrierStatus", status.Status)

	res = entity.PollResult{
		JourneyID: journey.ID,
		Status:    entity.OutcomeUpdated,
		Phase:     transition.NewPhase,
		NewStatus: string(transition.NewStatus),
	}
	if changes.Gate != nil {
		res.Gate = *changes.Gate
	}
	if changes.Terminal != nil {
		res.Terminal = *changes.Terminal
	}
	return res
}

// diff decides which monitored fields changed. An empty new gate or terminal
// never overwrites a stored one.
func (p *FlightPoller) diff(journey *entity.Journey, status *entity.FlightStatus, at time.Time) (entity.JourneyChanges, entity.JourneyTransition) {
	newPhase := p.mapper.MapCarrierStatus(status.Status)
	newStatus := StatusForPhase(newPhase)
	newGate := strings.TrimSpace(status.Gate)
	newTerminal := strings.TrimSpace(status.Terminal)

	transition := entity.JourneyTransition{
		JourneyID:     journey.ID,
		UserID:        journey.UserID,
		OldPhase:      journey.CurrentPhase,
		NewPhase:      newPhase,
		OldStatus:     journey.Status,
		NewStatus:     newStatus,
		OldGate:       journey.Gate,
		NewGate:       journey.Gate,
		OldTerminal:   journey.Terminal,
		NewTerminal:   journey.Terminal,
		CarrierStatus: status.Status,
		OccurredAt:    at,
	}

	var changes entity.JourneyChanges
	if newPhase != journey.CurrentPhase {
		changes.Phase = &newPhase
	}
	if newStatus != journey.Status {
		changes.Status = &newStatus
	}
	if newGate != "" && newGate != journey.Gate {
		changes.Gate = &newGate
		transition.NewGate = newGate
	}
	if newTerminal != "" && newTerminal != journey.Terminal {
		changes.Terminal = &newTerminal
		transition.NewTerminal = newTerminal
	}
	if changes.Empty() {
		return changes, transition
	}

	metadata := make(map[string]interface{}, len(journey.Metadata)+3)
	for k, v := range journey.Metadata {
		metadata[k] = v
	}
	metadata["lastCarrierStatus"] = status.Status
	metadata["lastCarrierUpdate"] = at.Format(time.RFC3339)
	if len(status.FlightStatuses) > 0 {
		metadata["flightStatuses"] = status.FlightStatuses
	}
	changes.Metadata = metadata

	return changes, transition
}
