package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetricsWith(prometheus.NewRegistry(), "test")
}

var fixedNow = time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type appliedUpdate struct {
	journeyID string
	version   int64
	changes   entity.JourneyChanges
}

type phaseUpdate struct {
	id     string
	phase  entity.Phase
	status *entity.LifecycleStatus
}

type fakeJourneyRepo struct {
	mu          sync.Mutex
	journeys    map[string]*entity.Journey
	active      []*entity.Journey
	findErr     error
	applyErr    map[string]error
	applied     []appliedUpdate
	phases      []phaseUpdate
	activeLimit int
}

func newFakeJourneyRepo(journeys ...*entity.Journey) *fakeJourneyRepo {
	r := &fakeJourneyRepo{journeys: map[string]*entity.Journey{}, applyErr: map[string]error{}}
	for _, j := range journeys {
		r.journeys[j.ID] = j
		r.active = append(r.active, j)
	}
	return r
}

func (r *fakeJourneyRepo) FindByID(_ context.Context, id string) (*entity.Journey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.journeys[id]
	if !ok {
		return nil, fmt.Errorf("journey %s: %w", id, entity.ErrNotFound)
	}
	return j, nil
}

func (r *fakeJourneyRepo) FindActive(_ context.Context, limit int) ([]*entity.Journey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeLimit = limit
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.active, nil
}

func (r *fakeJourneyRepo) ApplyPollUpdate(_ context.Context, journey *entity.Journey, changes entity.JourneyChanges, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.applyErr[journey.ID]; err != nil {
		return err
	}
	r.applied = append(r.applied, appliedUpdate{journeyID: journey.ID, version: journey.Version, changes: changes})
	return nil
}

func (r *fakeJourneyRepo) UpdatePhase(_ context.Context, id string, phase entity.Phase, status *entity.LifecycleStatus, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.journeys[id]; !ok {
		return entity.ErrNotFound
	}
	r.phases = append(r.phases, phaseUpdate{id: id, phase: phase, status: status})
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*entity.JourneyEvent
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.JourneyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*entity.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, entity.ErrNotFound)
	}
	return u, nil
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []string) ([]*entity.User, error) {
	var out []*entity.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu     sync.Mutex
	events []*entity.NotificationEvent
}

func (r *fakeAuditRepo) Append(_ context.Context, event *entity.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeAuditRepo) FindByJourney(_ context.Context, journeyID string, _ int) ([]*entity.NotificationEvent, error) {
	var out []*entity.NotificationEvent
	for _, e := range r.events {
		if e.JourneyID == journeyID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeGateway fails every token listed in fail
type fakeGateway struct {
	provider entity.PushProvider
	fail     map[string]bool

	mu   sync.Mutex
	sent []entity.PushMessage
}

func newFakeGateway(provider entity.PushProvider, failing ...string) *fakeGateway {
	g := &fakeGateway{provider: provider, fail: map[string]bool{}}
	for _, t := range failing {
		g.fail[t] = true
	}
	return g
}

func (g *fakeGateway) Provider() entity.PushProvider { return g.provider }

func (g *fakeGateway) Send(_ context.Context, msg entity.PushMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg)
	if g.fail[msg.Token] {
		return "", errors.New("Requested entity was not found.")
	}
	return "projects/demo/messages/" + msg.Token + msg.Topic, nil
}

func (g *fakeGateway) messages() []entity.PushMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entity.PushMessage(nil), g.sent...)
}

// fakeStatusRepo answers per flight code with a raw body or an error
type fakeStatusRepo struct {
	mu      sync.Mutex
	bodies  map[string]string
	errs    map[string]error
	panics  map[string]bool
	calls   int
	onFetch func(code string)
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{bodies: map[string]string{}, errs: map[string]error{}, panics: map[string]bool{}}
}

func (r *fakeStatusRepo) FetchStatus(_ context.Context, carrier, number string, departure time.Time) (*entity.UpstreamPayload, error) {
	code := carrier + number
	r.mu.Lock()
	r.calls++
	body, hasBody := r.bodies[code]
	err := r.errs[code]
	panics := r.panics[code]
	hook := r.onFetch
	r.mu.Unlock()

	if hook != nil {
		hook(code)
	}
	if panics {
		panic("unexpected upstream shape")
	}
	if err != nil {
		return nil, err
	}
	if !hasBody {
		body = `{"flightStatuses":[]}`
	}
	return &entity.UpstreamPayload{
		Carrier:      carrier,
		FlightNumber: number,
		Departure:    departure,
		Variant:      entity.VariantLive,
		Body:         json.RawMessage(body),
		FetchedAt:    fixedNow,
	}, nil
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArchive) Store(_ context.Context, journeyID string, _ *entity.UpstreamPayload) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := "raw/" + journeyID
	a.keys = append(a.keys, key)
	return key, nil
}

type fakePublisher struct {
	mu          sync.Mutex
	transitions []entity.JourneyTransition
}

func (p *fakePublisher) Publish(_ context.Context, tr entity.JourneyTransition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, tr)
	return nil
}

type fakeLock struct {
	held     bool
	released bool
}

func (l *fakeLock) TryAcquire(context.Context) (bool, error) { return !l.held, nil }

func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

func statusBody(status, gate, terminal string) string {
	return fmt.Sprintf(`{"flightStatuses":[{"carrierFsCode":"GA","flightNumber":"404","status":%q,`+
		`"airportResources":{"departure":{"gate":%q,"terminal":%q}}}]}`, status, gate, terminal)
}

func testJourney(id, carrier, number string) *entity.Journey {
	dep := fixedNow.Add(6 * time.Hour)
	return &entity.Journey{
		ID:           id,
		UserID:       "user-" + id,
		CurrentPhase: entity.PhasePreCheckIn,
		Status:       entity.StatusScheduled,
		Version:      3,
		Metadata:     map[string]interface{}{"seat": "12A"},
		Flight: &entity.Flight{
			ID:                 "flight-" + id,
			CarrierCode:        carrier,
			FlightNumber:       number,
			ScheduledDeparture: &dep,
			DepartureAirport:   "CGK",
			ArrivalAirport:     "DPS",
		},
	}
}
