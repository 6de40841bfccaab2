package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/usecase"
	"aerorelay-service/pkg/logger"
)

type stubPoller struct {
	report *entity.BatchReport
	err    error
}

func (s *stubPoller) RunBatch(context.Context) (*entity.BatchReport, error) {
	return s.report, s.err
}

type stubJourneys struct {
	status usecase.ProcessStatusRequest
	phase  usecase.PhaseChangeRequest
	result *usecase.JourneyUpdateResult
	err    error
}

func (s *stubJourneys) ApplyStatus(_ context.Context, req usecase.ProcessStatusRequest) (*usecase.JourneyUpdateResult, error) {
	s.status = req
	return s.result, s.err
}

func (s *stubJourneys) ApplyPhase(_ context.Context, req usecase.PhaseChangeRequest) (*usecase.JourneyUpdateResult, error) {
	s.phase = req
	return s.result, s.err
}

type stubDispatcher struct {
	send   usecase.SendRequest
	notify usecase.JourneyNotification
	batch  usecase.BatchSendRequest
	result *entity.DispatchResult
	err    error
}

func (s *stubDispatcher) Send(_ context.Context, req usecase.SendRequest) (*entity.DispatchResult, error) {
	s.send = req
	return s.result, s.err
}

func (s *stubDispatcher) NotifyJourney(_ context.Context, req usecase.JourneyNotification) (*entity.DispatchResult, error) {
	s.notify = req
	return s.result, s.err
}

func (s *stubDispatcher) SendBatch(_ context.Context, req usecase.BatchSendRequest) (*entity.DispatchResult, error) {
	s.batch = req
	return s.result, s.err
}

func perform(t *testing.T, fn gin.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	fn(c)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func newTestHandler(p BatchRunner, j JourneyUpdater, d Dispatcher) *Handler {
	return NewHandler(p, j, d, logger.NewNopLogger())
}

func TestCheckFlightStatuses(t *testing.T) {
	report := &entity.BatchReport{Success: true, Checked: 2, Updated: 1, NoChange: 1, Results: []entity.PollResult{}}
	h := newTestHandler(&stubPoller{report: report}, nil, nil)

	w, body := perform(t, h.CheckFlightStatuses, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["checked"])
	assert.Equal(t, float64(1), body["no_change"])
}

func TestCheckFlightStatuses_Failure(t *testing.T) {
	h := newTestHandler(&stubPoller{err: errors.New("db down")}, nil, nil)

	w, body := perform(t, h.CheckFlightStatuses, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "db down", body["details"])
}

func TestProcessFlightStatus(t *testing.T) {
	journeys := &stubJourneys{result: &usecase.JourneyUpdateResult{
		Success: true, JourneyID: "j-1", Phase: entity.PhaseDeparted, Status: entity.StatusInProgress,
	}}
	h := newTestHandler(nil, journeys, nil)

	w, body := perform(t, h.ProcessFlightStatus,
		`{"journeyId":"j-1","carrier":"GA","flightNumber":"404","status":"Departed","phase":"departed","flightData":{"gate":"B7"},"provider":"apns"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Flight status updated successfully", body["message"])
	assert.Equal(t, "departed", body["phase"])
	assert.Equal(t, "in_progress", body["status"])

	assert.Equal(t, "GA", journeys.status.Carrier)
	assert.Equal(t, "B7", journeys.status.FlightData["gate"])
	assert.Equal(t, entity.ProviderAPNs, journeys.status.Provider)
}

func TestProcessFlightStatus_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", fmt.Errorf("missing required fields: %w", entity.ErrValidation), http.StatusBadRequest, "missing required fields"},
		{"not found", fmt.Errorf("journey j-9: %w", entity.ErrNotFound), http.StatusNotFound, "journey j-9: not found"},
		{"internal", errors.New("tx aborted"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(nil, &stubJourneys{err: tc.err}, nil)
			w, body := perform(t, h.ProcessFlightStatus, `{"journeyId":"j-9"}`)
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
}

func TestMalformedBody(t *testing.T) {
	h := newTestHandler(nil, &stubJourneys{}, nil)

	w, body := perform(t, h.FlightPhaseNotification, `{"journeyId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestFlightPhaseNotification(t *testing.T) {
	journeys := &stubJourneys{result: &usecase.JourneyUpdateResult{
		Success: true, Message: "Flight phase notification sent successfully", Phase: entity.PhaseBoarding,
	}}
	h := newTestHandler(nil, journeys, nil)

	w, body := perform(t, h.FlightPhaseNotification, `{"journeyId":"j-1","newPhase":"boarding","provider":"apns"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Flight phase notification sent successfully", body["message"])
	assert.Equal(t, entity.ProviderAPNs, journeys.phase.Provider)
	assert.Equal(t, "boarding", journeys.phase.NewPhase)
}

func TestFlightStatusNotification(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Success: true, Sent: 1}}
	h := newTestHandler(nil, nil, d)

	w, _ := perform(t, h.FlightStatusNotification,
		`{"journeyId":"j-1","userId":"u-1","oldStatus":"scheduled","newStatus":"in_progress","oldPhase":"boarding","newPhase":"departed"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "departed", d.notify.Type)
	assert.Equal(t, "u-1", d.notify.UserID)
	assert.Equal(t, "in_progress", d.notify.Status)

	// same phase: only the status moved
	_, _ = perform(t, h.FlightStatusNotification,
		`{"journeyId":"j-1","userId":"u-1","newStatus":"delayed","oldPhase":"boarding","newPhase":"boarding"}`)
	assert.Equal(t, "status_change", d.notify.Type)
}

func TestFlightStatusNotification_MissingFields(t *testing.T) {
	h := newTestHandler(nil, nil, &stubDispatcher{})

	w, body := perform(t, h.FlightStatusNotification, `{"journeyId":"j-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing required fields: journeyId, userId, newStatus", body["error"])
}

func TestFlightUpdateNotification(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Success: true, Skipped: true, Message: "Journey already completed, notification skipped"}}
	h := newTestHandler(nil, nil, d)

	w, body := perform(t, h.FlightUpdateNotification,
		`{"journeyId":"j-1","gate":"B7","oldGate":"A1","notificationType":"gate_change"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["skipped"])
	assert.Equal(t, "gate_change", d.notify.Type)
	assert.Equal(t, "A1", d.notify.OldGate)

	_, _ = perform(t, h.FlightUpdateNotification, `{"journeyId":"j-1","phase":"landed"}`)
	assert.Equal(t, "landed", d.notify.Type)
}

func TestSendPushNotification(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{
		Success: true, Provider: entity.ProviderFCM, Sent: 2, Failed: 1, Errors: []string{"UNREGISTERED"},
	}}
	h := newTestHandler(nil, nil, d)

	w, body := perform(t, h.SendPushNotification,
		`{"tokens":["a","b","c"],"title":"Delay","body":"New time 11:40","data":{"delay":15,"gate":"B7"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["sent"])
	assert.Equal(t, float64(1), body["failed"])
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, "fcm", body["provider"])

	assert.Equal(t, []string{"a", "b", "c"}, d.send.Tokens)
	assert.Equal(t, map[string]string{"delay": "15", "gate": "B7"}, d.send.Data)
}

func TestSendBatchNotifications(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Success: true, Sent: 3, Failed: 1, Errors: []string{"x"}}}
	h := newTestHandler(nil, nil, d)

	w, body := perform(t, h.SendBatchNotifications,
		`{"userIds":["u-1","u-2","u-3","u-4","u-5"],"title":"t","body":"b","journeyId":"j-1","stage":"boarding"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Batch push notification sent: 3 successful, 1 failed", body["message"])

	results := body["results"].(map[string]interface{})
	assert.Equal(t, float64(5), results["totalUsers"])
	assert.Equal(t, float64(3), results["successCount"])
	assert.Equal(t, float64(1), results["errorCount"])

	assert.Equal(t, "boarding", d.batch.Data["stage"])
	assert.Equal(t, "j-1", d.batch.JourneyID)
}

func TestSendBatchNotifications_NoTokens(t *testing.T) {
	d := &stubDispatcher{err: fmt.Errorf("no valid FCM tokens found for the given users: %w", entity.ErrValidation)}
	h := newTestHandler(nil, nil, d)

	w, body := perform(t, h.SendBatchNotifications, `{"userIds":["u-1"],"title":"t","body":"b"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no valid FCM tokens found for the given users", body["error"])
}

func TestHealth(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	w, _ := perform(t, h.Health, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Healthy", w.Body.String())
}
