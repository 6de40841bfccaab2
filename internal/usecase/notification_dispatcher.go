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
	"aerorelay-service/templates"

	"golang.org/x/sync/errgroup"
)

const (
	msgNoToken          = "User has no FCM token, notification skipped"
	msgJourneyCompleted = "Journey already completed, notification skipped"

	maxParallelSends = 10
)

// SendRequest is a direct push. Exactly one of UserID, Token, Tokens or Topic is set.
type SendRequest struct {
	UserID    string
	Token     string
	Tokens    []string
	Topic     string
	Title     string
	Body      string
	Data      map[string]string
	Provider  entity.PushProvider
	JourneyID string
}

// JourneyNotification asks for the templated notification of a journey change
type JourneyNotification struct {
	JourneyID   string
	UserID      string
	Type        string
	Phase       string
	Status      string
	Gate        string
	OldGate     string
	Terminal    string
	OldTerminal string
	Provider    entity.PushProvider

	// AllowCompleted lets the transition that completed a journey announce itself
	AllowCompleted bool
}

// BatchSendRequest pushes the same text to many users
type BatchSendRequest struct {
	UserIDs   []string
	Title     string
	Body      string
	Data      map[string]string
	JourneyID string
	Provider  entity.PushProvider
}

// NotificationDispatcher resolves destinations and sends push notifications
type NotificationDispatcher struct {
	gateways        map[entity.PushProvider]repository.PushGateway
	defaultProvider entity.PushProvider
	journeyRepo     repository.JourneyRepository
	userRepo        repository.UserRepository
	eventRepo       repository.JourneyEventRepository
	auditRepo       repository.NotificationEventRepository
	logger          logger.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

// NewNotificationDispatcher creates a dispatcher over the given gateways.
// auditRepo may be nil.
func NewNotificationDispatcher(
	gateways []repository.PushGateway,
	defaultProvider entity.PushProvider,
	journeyRepo repository.JourneyRepository,
	userRepo repository.UserRepository,
	eventRepo repository.JourneyEventRepository,
	auditRepo repository.NotificationEventRepository,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *NotificationDispatcher {
	byProvider := make(map[entity.PushProvider]repository.PushGateway, len(gateways))
	for _, g := range gateways {
		byProvider[g.Provider()] = g
	}

	return &NotificationDispatcher{
		gateways:        byProvider,
		defaultProvider: defaultProvider,
		journeyRepo:     journeyRepo,
		userRepo:        userRepo,
		eventRepo:       eventRepo,
		auditRepo:       auditRepo,
		logger:          logger,
		metrics:         metrics,
		now:             time.Now,
	}
}

// Send delivers a direct push to a user, one or more tokens, or a topic
func (d *NotificationDispatcher) Send(ctx context.Context, req SendRequest) (*entity.DispatchResult, error) {
	if req.Title == "" || req.Body == "" {
		return nil, fmt.Errorf("title and body are required: %w", entity.ErrValidation)
	}
	if countTargets(req) != 1 {
		return nil, fmt.Errorf("exactly one of userId, token, tokens or topic must be provided: %w", entity.ErrValidation)
	}

	gateway, err := d.gateway(req.Provider)
	if err != nil {
		return nil, err
	}

	msg := entity.PushMessage{Title: req.Title, Body: req.Body, Data: req.Data}
	var tokens []string

	switch {
	case req.UserID != "":
		user, err := d.userRepo.FindByID(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		token := user.DeviceToken()
		if token == "" {
			return d.skip(ctx, gateway.Provider(), req.UserID, req.JourneyID, "direct", msg), nil
		}
		tokens = []string{token}
	case req.Token != "":
		tokens = []string{req.Token}
	case len(req.Tokens) > 0:
		tokens = nonEmpty(req.Tokens)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("no valid tokens found: %w", entity.ErrValidation)
		}
	case req.Topic != "":
		if gateway.Provider() != entity.ProviderFCM {
			return nil, fmt.Errorf("topic messages are only supported by the fcm provider: %w", entity.ErrValidation)
		}
		msg.Topic = req.Topic
		result := d.deliver(ctx, gateway, msg, []string{""})
		d.audit(ctx, req.UserID, req.JourneyID, "topic", msg, result, 1)
		return result, nil
	}

	result := d.deliver(ctx, gateway, msg, tokens)
	d.audit(ctx, req.UserID, req.JourneyID, "direct", msg, result, len(tokens))
	return result, nil
}

// NotifyJourney sends the templated notification of a journey change to its owner
func (d *NotificationDispatcher) NotifyJourney(ctx context.Context, req JourneyNotification) (*entity.DispatchResult, error) {
	if req.JourneyID == "" {
		return nil, fmt.Errorf("journeyId is required: %w", entity.ErrValidation)
	}

	gateway, err := d.gateway(req.Provider)
	if err != nil {
		return nil, err
	}

	journey, err := d.journeyRepo.FindByID(ctx, req.JourneyID)
	if err != nil {
		return nil, err
	}

	if journey.Completed() && !req.AllowCompleted {
		d.logger.Info("Journey already completed, skipping notification", "journeyId", journey.ID)
		return &entity.DispatchResult{Success: true, Skipped: true, Message: msgJourneyCompleted}, nil
	}

	userID := req.UserID
	if userID == "" {
		userID = journey.UserID
	}
	if userID == "" {
		return nil, fmt.Errorf("journey %s has no user: %w", journey.ID, entity.ErrNotFound)
	}

	user, err := d.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tag := req.Type
	if tag == "" {
		tag = templates.TypeStatusChange
	}
	flightCtx := journeyContext(journey, req)
	content := templates.Content(tag, flightCtx)

	msg := entity.PushMessage{
		Title: content.Title,
		Body:  content.Body,
		Data: map[string]string{
			"type":         tag,
			"journey_id":   journey.ID,
			"phase":        flightCtx.Phase,
			"status":       flightCtx.Status,
			"stage":        content.Stage,
			"timestamp":    d.now().UTC().Format(time.RFC3339),
			"click_action": entity.ClickActionFlightStatus,
			"gate":         flightCtx.Gate,
			"terminal":     flightCtx.Terminal,
		},
	}

	token := user.DeviceToken()
	if token == "" {
		d.logger.Info("User has no device token, skipping notification", "userId", user.ID, "journeyId", journey.ID)
		return d.skip(ctx, gateway.Provider(), user.ID, journey.ID, tag, msg), nil
	}

	result := d.deliver(ctx, gateway, msg, []string{token})
	d.audit(ctx, user.ID, journey.ID, tag, msg, result, 1)
	return result, nil
}

// SendBatch pushes one text to every user of the request that has a device token
func (d *NotificationDispatcher) SendBatch(ctx context.Context, req BatchSendRequest) (*entity.DispatchResult, error) {
	if len(req.UserIDs) == 0 || req.Title == "" || req.Body == "" {
		return nil, fmt.Errorf("userIds, title and body are required: %w", entity.ErrValidation)
	}

	gateway, err := d.gateway(req.Provider)
	if err != nil {
		return nil, err
	}

	users, err := d.userRepo.FindByIDs(ctx, req.UserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	tokens := make([]string, 0, len(users))
	for _, u := range users {
		if token := u.DeviceToken(); token != "" {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no valid FCM tokens found for the given users: %w", entity.ErrValidation)
	}

	msg := entity.PushMessage{Title: req.Title, Body: req.Body, Data: req.Data}
	result := d.deliver(ctx, gateway, msg, tokens)
	d.audit(ctx, "", req.JourneyID, "batch", msg, result, len(tokens))

	if req.JourneyID != "" {
		metadata := map[string]interface{}{
			"totalUsers":   len(req.UserIDs),
			"successCount": result.Sent,
			"errorCount":   result.Failed,
		}
		for k, v := range req.Data {
			metadata[k] = v
		}
		if len(result.Errors) > 0 {
			metadata["errors"] = result.Errors
		}
		event := &entity.JourneyEvent{
			JourneyID:   req.JourneyID,
			EventType:   entity.EventBatchPushSent,
			Title:       "Batch Push Notification Sent",
			Description: fmt.Sprintf("%s: %s (%d sent, %d failed)", req.Title, req.Body, result.Sent, result.Failed),
			Metadata:    metadata,
			OccurredAt:  d.now().UTC(),
		}
		if err := d.eventRepo.Create(ctx, event); err != nil {
			d.logger.Error("Failed to record batch notification event", "journeyId", req.JourneyID, "error", err)
		}
	}

	return result, nil
}

// HandleTransition notifies the journey owner about a persisted poller change.
// A phase change, a gate change and a terminal change each produce one notification.
func (d *NotificationDispatcher) HandleTransition(ctx context.Context, tr entity.JourneyTransition) error {
	var notes []JourneyNotification
	base := JourneyNotification{
		JourneyID:      tr.JourneyID,
		UserID:         tr.UserID,
		Phase:          string(tr.NewPhase),
		Status:         string(tr.NewStatus),
		Gate:           tr.NewGate,
		OldGate:        tr.OldGate,
		Terminal:       tr.NewTerminal,
		OldTerminal:    tr.OldTerminal,
		AllowCompleted: !tr.OldPhase.Terminal(),
	}

	if tr.PhaseChanged() {
		n := base
		n.Type = string(tr.NewPhase)
		if !templates.HasPhase(n.Type) {
			n.Type = templates.TypeStatusChange
		}
		notes = append(notes, n)
	}
	if tr.GateChanged() {
		n := base
		n.Type = templates.TypeGateChange
		notes = append(notes, n)
	}
	if tr.TerminalChanged() {
		n := base
		n.Type = templates.TypeTerminalChange
		notes = append(notes, n)
	}

	var errs []error
	for _, n := range notes {
		result, err := d.NotifyJourney(ctx, n)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Type, err))
			continue
		}
		d.logger.Debug("Transition notification dispatched",
			"journeyId", tr.JourneyID,
			"type", n.Type,
			"outcome", result.Outcome())
	}
	return errors.Join(errs...)
}

// Providers lists the configured push providers
func (d *NotificationDispatcher) Providers() []entity.PushProvider {
	out := make([]entity.PushProvider, 0, len(d.gateways))
	for p := range d.gateways {
		out = append(out, p)
	}
	return out
}

func (d *NotificationDispatcher) gateway(provider entity.PushProvider) (repository.PushGateway, error) {
	if provider == "" {
		provider = d.defaultProvider
	}
	g, ok := d.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("push provider %q is not configured: %w", provider, entity.ErrValidation)
	}
	return g, nil
}

// deliver sends msg to every token in parallel and tallies the outcomes.
// An empty token means msg already carries its topic.
func (d *NotificationDispatcher) deliver(ctx context.Context, gateway repository.PushGateway, msg entity.PushMessage, tokens []string) *entity.DispatchResult {
	results := make([]entity.PushResult, len(tokens))

	// per-token failures are tallied, so no send returns an error to the group
	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			m := msg
			if token != "" {
				m.Token = token
			}
			id, err := gateway.Send(ctx, m)
			results[i] = entity.PushResult{Token: token, MessageID: id}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &entity.DispatchResult{Provider: gateway.Provider(), Results: results}
	for _, r := range results {
		if r.OK() {
			result.Sent++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, r.Error)
	}
	result.Success = result.Sent > 0
	result.Message = fmt.Sprintf("Sent %d notifications, %d failed", result.Sent, result.Failed)

	d.metrics.NotificationsSent.WithLabelValues(string(result.Provider), entity.NotificationSent).Add(float64(result.Sent))
	d.metrics.NotificationsSent.WithLabelValues(string(result.Provider), entity.NotificationFailed).Add(float64(result.Failed))

	if result.Failed > 0 {
		d.logger.Warn("Some notifications failed",
			"provider", result.Provider,
			"sent", result.Sent,
			"failed", result.Failed)
	}
	return result
}

func (d *NotificationDispatcher) skip(ctx context.Context, provider entity.PushProvider, userID, journeyID, kind string, msg entity.PushMessage) *entity.DispatchResult {
	result := &entity.DispatchResult{Success: true, Skipped: true, Message: msgNoToken, Provider: provider}
	d.metrics.NotificationsSent.WithLabelValues(string(provider), entity.NotificationSkipped).Inc()
	d.audit(ctx, userID, journeyID, kind, msg, result, 0)
	return result
}

func (d *NotificationDispatcher) audit(ctx context.Context, userID, journeyID, kind string, msg entity.PushMessage, result *entity.DispatchResult, targets int) {
	if d.auditRepo == nil {
		return
	}
	event := &entity.NotificationEvent{
		UserID:    userID,
		JourneyID: journeyID,
		Provider:  string(result.Provider),
		Type:      kind,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      msg.Data,
		Targets:   targets,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Outcome:   result.Outcome(),
		Errors:    result.Errors,
		CreatedAt: d.now().UTC(),
	}
	if err := d.auditRepo.Append(ctx, event); err != nil {
		d.logger.Error("Failed to record notification event", "journeyId", journeyID, "error", err)
	}
}

// journeyContext merges the request overrides with the stored journey
func journeyContext(journey *entity.Journey, req JourneyNotification) templates.FlightContext {
	ctx := templates.FlightContext{
		Phase:       firstNonEmpty(req.Phase, string(journey.CurrentPhase)),
		Status:      firstNonEmpty(req.Status, string(journey.Status)),
		Gate:        firstNonEmpty(req.Gate, journey.Gate),
		OldGate:     req.OldGate,
		Terminal:    firstNonEmpty(req.Terminal, journey.Terminal),
		OldTerminal: req.OldTerminal,
	}
	if f := journey.Flight; f != nil {
		ctx.Carrier = f.CarrierCode
		ctx.FlightNumber = f.FlightNumber
		ctx.AirlineName = f.AirlineName
		ctx.From = firstNonEmpty(f.DepartureCity, f.DepartureAirport)
		ctx.To = firstNonEmpty(f.ArrivalCity, f.ArrivalAirport)
		if ctx.Gate == "" {
			ctx.Gate = f.Gate
		}
		if ctx.Terminal == "" {
			ctx.Terminal = f.Terminal
		}
	}
	return ctx
}

func countTargets(req SendRequest) int {
	n := 0
	if req.UserID != "" {
		n++
	}
	if req.Token != "" {
		n++
	}
	if len(req.Tokens) > 0 {
		n++
	}
	if req.Topic != "" {
		n++
	}
	return n
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
