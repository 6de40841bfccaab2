// internal/domain/entity/flight_status.go
package entity

import (
	"encoding/json"
	"time"
)

// Upstream endpoint variants
const (
	VariantLive       = "live"
	VariantHistorical = "historical"
)

// UpstreamPayload is a raw flight status response as received
type UpstreamPayload struct {
	Carrier      string
	FlightNumber string
	Departure    time.Time
	Variant      string
	Body         json.RawMessage
	FetchedAt    time.Time
}

// FlightStatus is the defensively parsed first entry of an upstream response.
// Missing fields are left empty.
type FlightStatus struct {
	Carrier            string `json:"carrier"`
	FlightNumber       string `json:"flightNumber"`
	Status             string `json:"status"`
	DepartureAirport   string `json:"departureAirport"`
	ArrivalAirport     string `json:"arrivalAirport"`
	Gate               string `json:"gate"`
	Terminal           string `json:"terminal"`
	ScheduledDeparture string `json:"scheduledDeparture"`
	ScheduledArrival   string `json:"scheduledArrival"`
	ActualDeparture    string `json:"actualDeparture"`
	ActualArrival      string `json:"actualArrival"`
	DepartureDelay     int    `json:"departureDelay"`
	ArrivalDelay       int    `json:"arrivalDelay"`

	// FlightStatuses is the untouched upstream array, kept for the journey metadata
	FlightStatuses json.RawMessage `json:"-"`
}

// Poll outcomes
const (
	OutcomeUpdated  = "updated"
	OutcomeNoChange = "no_change"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// PollResult is the outcome of reconciling one journey
type PollResult struct {
	JourneyID string `json:"journeyId"`
	Status    string `json:"status"`
	Phase     Phase  `json:"phase,omitempty"`
	NewStatus string `json:"status_new,omitempty"`
	Gate      string `json:"gate,omitempty"`
	Terminal  string `json:"terminal,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PollSummary repeats the tallies of a batch
type PollSummary struct {
	Total    int `json:"total"`
	Updated  int `json:"updated"`
	NoChange int `json:"no_change"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// BatchReport is the aggregate outcome of one poller run
type BatchReport struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message,omitempty"`
	Checked  int          `json:"checked"`
	Updated  int          `json:"updated"`
	NoChange int          `json:"no_change"`
	Skipped  int          `json:"skipped"`
	Errors   int          `json:"errors"`
	Summary  PollSummary  `json:"summary"`
	Results  []PollResult `json:"results"`
}

// Tally counts a result into the report
func (r *BatchReport) Tally(res PollResult) {
	switch res.Status {
	case OutcomeUpdated:
		r.Updated++
	case OutcomeNoChange:
		r.NoChange++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Errors++
	}
	r.Summary = PollSummary{
		Total:    r.Checked,
		Updated:  r.Updated,
		NoChange: r.NoChange,
		Skipped:  r.Skipped,
		Errors:   r.Errors,
	}
}
