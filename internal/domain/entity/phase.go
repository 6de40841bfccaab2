package entity

// Phase is the fine-grained lifecycle stage of a tracked journey
type Phase string

const (
	PhasePreCheckIn   Phase = "pre_check_in"
	PhaseCheckInOpen  Phase = "check_in_open"
	PhaseAtAirport    Phase = "at_airport"
	PhaseBoarding     Phase = "boarding"
	PhaseGateClosed   Phase = "gate_closed"
	PhaseDeparted     Phase = "departed"
	PhaseInFlight     Phase = "in_flight"
	PhaseLanding      Phase = "landing"
	PhaseLanded       Phase = "landed"
	PhaseArrived      Phase = "arrived"
	PhaseBaggageClaim Phase = "baggage_claim"
	PhaseCancelled    Phase = "cancelled"
	PhaseDiverted     Phase = "diverted"
	PhaseCompleted    Phase = "completed"
	PhaseUnknown      Phase = "unknown"
)

// AllPhases lists every phase a journey can carry
var AllPhases = []Phase{
	PhasePreCheckIn, PhaseCheckInOpen, PhaseAtAirport, PhaseBoarding, PhaseGateClosed,
	PhaseDeparted, PhaseInFlight, PhaseLanding, PhaseLanded, PhaseArrived,
	PhaseBaggageClaim, PhaseCancelled, PhaseDiverted, PhaseCompleted, PhaseUnknown,
}

// TerminalPhases are never polled again
var TerminalPhases = []Phase{PhaseArrived, PhaseCancelled, PhaseCompleted}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	for _, known := range AllPhases {
		if p == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the journey is finished once it reaches p
func (p Phase) Terminal() bool {
	for _, t := range TerminalPhases {
		if p == t {
			return true
		}
	}
	return false
}

// LifecycleStatus is the coarse projection of a phase
type LifecycleStatus string

const (
	StatusScheduled  LifecycleStatus = "scheduled"
	StatusInProgress LifecycleStatus = "in_progress"
	StatusCompleted  LifecycleStatus = "completed"
	StatusCancelled  LifecycleStatus = "cancelled"
	StatusDiverted   LifecycleStatus = "diverted"
	StatusUnknown    LifecycleStatus = "unknown"

	// StatusActive is written by the mobile client when a journey is created
	StatusActive LifecycleStatus = "active"
)

// PollableStatuses are the statuses the batch poller selects
var PollableStatuses = []LifecycleStatus{StatusActive, StatusScheduled, StatusInProgress}

// PushProvider selects the push gateway implementation
type PushProvider string

const (
	ProviderFCM  PushProvider = "fcm"
	ProviderAPNs PushProvider = "apns"
)
