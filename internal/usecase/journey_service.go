package usecase

import (
	"context"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/utils"
	"aerorelay-service/templates"
)

// JourneyNotifier sends the templated notification of a journey change
type JourneyNotifier interface {
	NotifyJourney(ctx context.Context, req JourneyNotification) (*entity.DispatchResult, error)
}

// ProcessStatusRequest reports a carrier status that was already mapped to a phase
type ProcessStatusRequest struct {
	JourneyID    string
	Carrier      string
	FlightNumber string
	Status       string
	Phase        string
	FlightData   map[string]interface{}
	Provider     entity.PushProvider
}

// PhaseChangeRequest moves a journey to a new phase and announces it
type PhaseChangeRequest struct {
	JourneyID     string
	NewPhase      string
	PreviousPhase string
	FlightData    map[string]interface{}
	Provider      entity.PushProvider
}

// JourneyUpdateResult is returned by both journey update operations
type JourneyUpdateResult struct {
	Success       bool                   `json:"success"`
	Message       string                 `json:"message,omitempty"`
	JourneyID     string                 `json:"journeyId"`
	Phase         entity.Phase           `json:"phase"`
	Status        entity.LifecycleStatus `json:"status"`
	CarrierStatus string                 `json:"carrierStatus,omitempty"`
	PreviousPhase entity.Phase           `json:"previousPhase,omitempty"`
	Notification  *entity.DispatchResult `json:"notification,omitempty"`
}

// JourneyService applies externally reported phase changes to journeys
type JourneyService struct {
	journeyRepo repository.JourneyRepository
	eventRepo   repository.JourneyEventRepository
	notifier    JourneyNotifier
	logger      logger.Logger
	now         func() time.Time
}

// NewJourneyService creates a new journey service
func NewJourneyService(
	journeyRepo repository.JourneyRepository,
	eventRepo repository.JourneyEventRepository,
	notifier JourneyNotifier,
	logger logger.Logger,
) *JourneyService {
	return &JourneyService{
		journeyRepo: journeyRepo,
		eventRepo:   eventRepo,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// ApplyStatus writes the phase and its derived status, records a status_change
// event and notifies the owner when they have a device token
func (s *JourneyService) ApplyStatus(ctx context.Context, req ProcessStatusRequest) (*JourneyUpdateResult, error) {
	if req.JourneyID == "" || req.Carrier == "" || req.FlightNumber == "" || req.Status == "" || req.Phase == "" {
		return nil, fmt.Errorf("missing required fields: journeyId, carrier, flightNumber, status, phase: %w", entity.ErrValidation)
	}
	phase := entity.Phase(req.Phase)
	if !phase.Valid() {
		return nil, fmt.Errorf("unknown flight phase %q: %w", req.Phase, entity.ErrValidation)
	}

	if _, err := s.journeyRepo.FindByID(ctx, req.JourneyID); err != nil {
		return nil, err
	}

	status := StatusForPhase(phase)
	at := s.now().UTC()
	if err := s.journeyRepo.UpdatePhase(ctx, req.JourneyID, phase, &status, at); err != nil {
		return nil, fmt.Errorf("failed to update journey: %w", err)
	}

	flight := utils.FlightCode(req.Carrier, req.FlightNumber, "")
	event := &entity.JourneyEvent{
		JourneyID:   req.JourneyID,
		EventType:   entity.EventStatusChange,
		Title:       templates.EventTitle(req.Phase),
		Description: templates.EventDescription(req.Phase, flight),
		Metadata:    req.FlightData,
		OccurredAt:  at,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to create journey event", "journeyId", req.JourneyID, "error", err)
	}

	result := &JourneyUpdateResult{
		Success:       true,
		JourneyID:     req.JourneyID,
		Phase:         phase,
		Status:        status,
		CarrierStatus: req.Status,
	}

	tag := templates.TypeStatusChange
	if templates.HasPhase(req.Phase) {
		tag = req.Phase
	}
	notification, err := s.notifier.NotifyJourney(ctx, JourneyNotification{
		JourneyID:      req.JourneyID,
		Type:           tag,
		Phase:          req.Phase,
		Status:         string(status),
		Provider:       req.Provider,
		AllowCompleted: true,
	})
	if err != nil {
		// the status is already persisted; a failed push does not undo it
		s.logger.Error("Failed to send status notification", "journeyId", req.JourneyID, "error", err)
	} else {
		result.Notification = notification
	}

	return result, nil
}

// ApplyPhase announces a phase to the journey owner, then stores the phase
// and records a phase_change event. A failed delivery leaves the journey untouched.
func (s *JourneyService) ApplyPhase(ctx context.Context, req PhaseChangeRequest) (*JourneyUpdateResult, error) {
	if req.JourneyID == "" || req.NewPhase == "" {
		return nil, fmt.Errorf("missing required fields: journeyId, newPhase: %w", entity.ErrValidation)
	}
	if !templates.HasPhase(req.NewPhase) {
		return nil, fmt.Errorf("unknown flight phase: %s: %w", req.NewPhase, entity.ErrValidation)
	}
	phase := entity.Phase(req.NewPhase)

	journey, err := s.journeyRepo.FindByID(ctx, req.JourneyID)
	if err != nil {
		return nil, err
	}

	previous := entity.Phase(req.PreviousPhase)
	if previous == "" {
		previous = journey.CurrentPhase
	}

	status := StatusForPhase(phase)
	notification, err := s.notifier.NotifyJourney(ctx, JourneyNotification{
		JourneyID:      req.JourneyID,
		Type:           req.NewPhase,
		Phase:          req.NewPhase,
		Status:         string(status),
		Provider:       req.Provider,
		AllowCompleted: true,
	})
	if err != nil {
		return nil, err
	}
	if !notification.Skipped && notification.Sent == 0 {
		return nil, fmt.Errorf("failed to send push notification: %s", firstError(notification.Errors))
	}

	at := s.now().UTC()
	if err := s.journeyRepo.UpdatePhase(ctx, req.JourneyID, phase, &status, at); err != nil {
		return nil, fmt.Errorf("failed to update journey: %w", err)
	}

	metadata := map[string]interface{}{
		"newPhase":         req.NewPhase,
		"previousPhase":    string(previous),
		"notificationSent": !notification.Skipped,
	}
	for k, v := range req.FlightData {
		metadata[k] = v
	}
	event := &entity.JourneyEvent{
		JourneyID:   req.JourneyID,
		EventType:   entity.EventPhaseChange,
		Title:       "Flight Phase Changed",
		Description: templates.PhaseChangeDescription(string(previous), req.NewPhase),
		Metadata:    metadata,
		OccurredAt:  at,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to create journey event", "journeyId", req.JourneyID, "error", err)
	}

	message := "Flight phase notification sent successfully"
	if notification.Skipped {
		message = notification.Message
	}

	return &JourneyUpdateResult{
		Success:       true,
		Message:       message,
		JourneyID:     req.JourneyID,
		Phase:         phase,
		Status:        status,
		PreviousPhase: previous,
		Notification:  notification,
	}, nil
}

func firstError(errs []string) string {
	if len(errs) == 0 {
		return "unknown push error"
	}
	return errs[0]
}
