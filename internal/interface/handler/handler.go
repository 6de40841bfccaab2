package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/usecase"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/utils"
	"aerorelay-service/templates"

	"github.com/gin-gonic/gin"
)

// BatchRunner runs one reconciliation pass over active journeys
type BatchRunner interface {
	RunBatch(ctx context.Context) (*entity.BatchReport, error)
}

// JourneyUpdater applies externally reported phase changes
type JourneyUpdater interface {
	ApplyStatus(ctx context.Context, req usecase.ProcessStatusRequest) (*usecase.JourneyUpdateResult, error)
	ApplyPhase(ctx context.Context, req usecase.PhaseChangeRequest) (*usecase.JourneyUpdateResult, error)
}

// Dispatcher sends push notifications
type Dispatcher interface {
	Send(ctx context.Context, req usecase.SendRequest) (*entity.DispatchResult, error)
	NotifyJourney(ctx context.Context, req usecase.JourneyNotification) (*entity.DispatchResult, error)
	SendBatch(ctx context.Context, req usecase.BatchSendRequest) (*entity.DispatchResult, error)
}

// Handler serves the JSON endpoints
type Handler struct {
	poller     BatchRunner
	journeys   JourneyUpdater
	dispatcher Dispatcher
	logger     logger.Logger
}

// NewHandler creates a new handler
func NewHandler(poller BatchRunner, journeys JourneyUpdater, dispatcher Dispatcher, logger logger.Logger) *Handler {
	return &Handler{
		poller:     poller,
		journeys:   journeys,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type processFlightStatusRequest struct {
	JourneyID    string                 `json:"journeyId"`
	Carrier      string                 `json:"carrier"`
	FlightNumber string                 `json:"flightNumber"`
	Status       string                 `json:"status"`
	Phase        string                 `json:"phase"`
	FlightData   map[string]interface{} `json:"flightData"`
	Provider     string                 `json:"provider"`
}

type flightPhaseNotificationRequest struct {
	JourneyID     string                 `json:"journeyId"`
	NewPhase      string                 `json:"newPhase"`
	PreviousPhase string                 `json:"previousPhase"`
	FlightData    map[string]interface{} `json:"flightData"`
	Provider      string                 `json:"provider"`
}

type flightStatusNotificationRequest struct {
	JourneyID    string `json:"journeyId"`
	UserID       string `json:"userId"`
	OldStatus    string `json:"oldStatus"`
	NewStatus    string `json:"newStatus"`
	OldPhase     string `json:"oldPhase"`
	NewPhase     string `json:"newPhase"`
	FlightNumber string `json:"flightNumber"`
	Carrier      string `json:"carrier"`
	Provider     string `json:"provider"`
}

type flightUpdateNotificationRequest struct {
	JourneyID        string `json:"journeyId"`
	Status           string `json:"status"`
	Phase            string `json:"phase"`
	Gate             string `json:"gate"`
	Terminal         string `json:"terminal"`
	OldGate          string `json:"oldGate"`
	OldTerminal      string `json:"oldTerminal"`
	NotificationType string `json:"notificationType"`
	Provider         string `json:"provider"`
}

type sendPushRequest struct {
	UserID    string                 `json:"userId"`
	Token     string                 `json:"token"`
	Tokens    []string               `json:"tokens"`
	Topic     string                 `json:"topic"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data"`
	JourneyID string                 `json:"journeyId"`
	Provider  string                 `json:"provider"`
}

type sendBatchRequest struct {
	UserIDs   []string               `json:"userIds"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data"`
	JourneyID string                 `json:"journeyId"`
	Stage     string                 `json:"stage"`
	Provider  string                 `json:"provider"`
}

// CheckFlightStatuses runs one poller batch
func (h *Handler) CheckFlightStatuses(c *gin.Context) {
	report, err := h.poller.RunBatch(c.Request.Context())
	if err != nil {
		h.writeError(c, "check-flight-statuses", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ProcessFlightStatus stores a carrier status that the caller already mapped to a phase
func (h *Handler) ProcessFlightStatus(c *gin.Context) {
	var req processFlightStatusRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.journeys.ApplyStatus(c.Request.Context(), usecase.ProcessStatusRequest{
		JourneyID:    req.JourneyID,
		Carrier:      req.Carrier,
		FlightNumber: req.FlightNumber,
		Status:       req.Status,
		Phase:        req.Phase,
		FlightData:   req.FlightData,
		Provider:     entity.PushProvider(req.Provider),
	})
	if err != nil {
		h.writeError(c, "process-flight-status", err)
		return
	}
	result.Message = "Flight status updated successfully"
	c.JSON(http.StatusOK, result)
}

// FlightPhaseNotification announces a phase and stores it
func (h *Handler) FlightPhaseNotification(c *gin.Context) {
	var req flightPhaseNotificationRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.journeys.ApplyPhase(c.Request.Context(), usecase.PhaseChangeRequest{
		JourneyID:     req.JourneyID,
		NewPhase:      req.NewPhase,
		PreviousPhase: req.PreviousPhase,
		FlightData:    req.FlightData,
		Provider:      entity.PushProvider(req.Provider),
	})
	if err != nil {
		h.writeError(c, "flight-phase-notification", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FlightStatusNotification sends the status or phase change text of a journey
func (h *Handler) FlightStatusNotification(c *gin.Context) {
	var req flightStatusNotificationRequest
	if !h.bind(c, &req) {
		return
	}
	if req.JourneyID == "" || req.UserID == "" || req.NewStatus == "" {
		h.writeError(c, "flight-status-notification",
			fmt.Errorf("missing required fields: journeyId, userId, newStatus: %w", entity.ErrValidation))
		return
	}

	tag := templates.TypeStatusChange
	if req.NewPhase != "" && req.NewPhase != req.OldPhase && templates.HasPhase(req.NewPhase) {
		tag = req.NewPhase
	}

	result, err := h.dispatcher.NotifyJourney(c.Request.Context(), usecase.JourneyNotification{
		JourneyID: req.JourneyID,
		UserID:    req.UserID,
		Type:      tag,
		Phase:     req.NewPhase,
		Status:    req.NewStatus,
		Provider:  entity.PushProvider(req.Provider),
	})
	if err != nil {
		h.writeError(c, "flight-status-notification", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FlightUpdateNotification sends a typed notification about a journey
func (h *Handler) FlightUpdateNotification(c *gin.Context) {
	var req flightUpdateNotificationRequest
	if !h.bind(c, &req) {
		return
	}

	tag := req.NotificationType
	if tag == "" && templates.HasPhase(req.Phase) {
		tag = req.Phase
	}

	result, err := h.dispatcher.NotifyJourney(c.Request.Context(), usecase.JourneyNotification{
		JourneyID:   req.JourneyID,
		Type:        tag,
		Phase:       req.Phase,
		Status:      req.Status,
		Gate:        req.Gate,
		OldGate:     req.OldGate,
		Terminal:    req.Terminal,
		OldTerminal: req.OldTerminal,
		Provider:    entity.PushProvider(req.Provider),
	})
	if err != nil {
		h.writeError(c, "flight-update-notification", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SendPushNotification delivers a direct push
func (h *Handler) SendPushNotification(c *gin.Context) {
	var req sendPushRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.dispatcher.Send(c.Request.Context(), usecase.SendRequest{
		UserID:    req.UserID,
		Token:     req.Token,
		Tokens:    req.Tokens,
		Topic:     req.Topic,
		Title:     req.Title,
		Body:      req.Body,
		Data:      utils.StringifyData(req.Data),
		JourneyID: req.JourneyID,
		Provider:  entity.PushProvider(req.Provider),
	})
	if err != nil {
		h.writeError(c, "send-push-notification", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  result.Success,
		"skipped":  result.Skipped,
		"message":  result.Message,
		"provider": result.Provider,
		"sent":     result.Sent,
		"failed":   result.Failed,
		"total":    result.Sent + result.Failed,
		"errors":   result.Errors,
		"results":  result.Results,
	})
}

// SendBatchNotifications pushes one text to many users
func (h *Handler) SendBatchNotifications(c *gin.Context) {
	var req sendBatchRequest
	if !h.bind(c, &req) {
		return
	}

	data := utils.StringifyData(req.Data)
	if req.Stage != "" {
		if data == nil {
			data = map[string]string{}
		}
		data["stage"] = req.Stage
	}

	result, err := h.dispatcher.SendBatch(c.Request.Context(), usecase.BatchSendRequest{
		UserIDs:   req.UserIDs,
		Title:     req.Title,
		Body:      req.Body,
		Data:      data,
		JourneyID: req.JourneyID,
		Provider:  entity.PushProvider(req.Provider),
	})
	if err != nil {
		h.writeError(c, "send-batch-notifications", err)
		return
	}

	results := gin.H{
		"totalUsers":   len(req.UserIDs),
		"successCount": result.Sent,
		"errorCount":   result.Failed,
	}
	if len(result.Errors) > 0 {
		results["errors"] = result.Errors
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  fmt.Sprintf("Batch push notification sent: %d successful, %d failed", result.Sent, result.Failed),
		"provider": result.Provider,
		"results":  results,
	})
}

// Health answers liveness checks
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "Healthy")
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return false
	}
	return true
}

// writeError maps domain errors to status codes
func (h *Handler) writeError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, entity.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}

// validationMessage drops the sentinel suffix from a wrapped validation error
func validationMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+entity.ErrValidation.Error())
}
