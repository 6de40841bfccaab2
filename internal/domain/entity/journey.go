// internal/domain/entity/journey.go
package entity

import (
	"time"
)

// Flight is the upstream lookup key of a journey
type Flight struct {
	ID                 string
	CarrierCode        string
	FlightNumber       string
	ScheduledDeparture *time.Time
	AirlineName        string
	DepartureAirport   string
	ArrivalAirport     string
	DepartureCity      string
	ArrivalCity        string
	Gate               string
	Terminal           string
}

// Pollable reports whether the flight carries everything the status API needs
func (f *Flight) Pollable() bool {
	return f != nil && f.CarrierCode != "" && f.FlightNumber != "" &&
		f.ScheduledDeparture != nil && !f.ScheduledDeparture.IsZero()
}

// Code returns carrier+number, or "" when either is missing
func (f *Flight) Code() string {
	if f == nil || f.CarrierCode == "" || f.FlightNumber == "" {
		return ""
	}
	return f.CarrierCode + f.FlightNumber
}

// Journey is a user's tracked flight
type Journey struct {
	ID           string
	UserID       string
	FlightID     string
	Flight       *Flight
	CurrentPhase Phase
	Status       LifecycleStatus
	Gate         string
	Terminal     string
	Version      int64
	Metadata     map[string]interface{}
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Completed reports whether no further notifications should go out for the journey
func (j *Journey) Completed() bool {
	if j.CurrentPhase.Terminal() {
		return true
	}
	return j.Status == StatusCompleted || j.Status == StatusCancelled
}

// JourneyChanges carries only the fields the poller decided to write.
// Nil pointers are left untouched.
type JourneyChanges struct {
	Phase    *Phase
	Status   *LifecycleStatus
	Gate     *string
	Terminal *string
	Metadata map[string]interface{}
}

// Empty reports whether no monitored field changed
func (c JourneyChanges) Empty() bool {
	return c.Phase == nil && c.Status == nil && c.Gate == nil && c.Terminal == nil
}

// JourneyTransition describes a persisted change of a journey
type JourneyTransition struct {
	JourneyID     string          `json:"journeyId"`
	UserID        string          `json:"userId"`
	OldPhase      Phase           `json:"oldPhase"`
	NewPhase      Phase           `json:"newPhase"`
	OldStatus     LifecycleStatus `json:"oldStatus"`
	NewStatus     LifecycleStatus `json:"newStatus"`
	OldGate       string          `json:"oldGate,omitempty"`
	NewGate       string          `json:"newGate,omitempty"`
	OldTerminal   string          `json:"oldTerminal,omitempty"`
	NewTerminal   string          `json:"newTerminal,omitempty"`
	CarrierStatus string          `json:"carrierStatus,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// PhaseChanged reports whether the transition moved the journey to another phase
func (t JourneyTransition) PhaseChanged() bool {
	return t.NewPhase != "" && t.NewPhase != t.OldPhase
}

// GateChanged reports whether a new non-empty gate was written
func (t JourneyTransition) GateChanged() bool {
	return t.NewGate != "" && t.NewGate != t.OldGate
}

// TerminalChanged reports whether a new non-empty terminal was written
func (t JourneyTransition) TerminalChanged() bool {
	return t.NewTerminal != "" && t.NewTerminal != t.OldTerminal
}
