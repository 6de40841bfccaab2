package usecase

import (
	"strings"

	"aerorelay-service/internal/domain/entity"
)

// PhaseRule maps carrier status text to a phase when any keyword is contained
// in it or any code equals it
type PhaseRule struct {
	Phase    entity.Phase
	Contains []string
	Equals   []string
}

// Matches checks a lower-cased, trimmed status against the rule
func (r PhaseRule) Matches(status string) bool {
	for _, code := range r.Equals {
		if status == code {
			return true
		}
	}
	for _, keyword := range r.Contains {
		if strings.Contains(status, keyword) {
			return true
		}
	}
	return false
}

// DefaultCarrierRules is the carrier vocabulary, evaluated top to bottom
var DefaultCarrierRules = []PhaseRule{
	{Phase: entity.PhasePreCheckIn, Contains: []string{"scheduled", "ontime", "on-time"}, Equals: []string{"s"}},
	{Phase: entity.PhaseBoarding, Contains: []string{"boarding", "gate"}, Equals: []string{"b"}},
	{Phase: entity.PhaseDeparted, Contains: []string{"departed", "inflight", "in-flight", "in flight"}, Equals: []string{"d"}},
	{Phase: entity.PhaseLanded, Contains: []string{"landed", "landing"}, Equals: []string{"l"}},
	{Phase: entity.PhaseArrived, Contains: []string{"arrived", "arrival"}, Equals: []string{"a"}},
	{Phase: entity.PhaseCancelled, Contains: []string{"cancelled", "canceled", "cancel"}, Equals: []string{"c"}},
	{Phase: entity.PhaseDiverted, Contains: []string{"diverted", "divert"}},
	// a delay keeps the journey before check-in; the notification side reports the delay
	{Phase: entity.PhasePreCheckIn, Contains: []string{"delayed", "delay"}},
}

// StatusMapper turns free-text carrier statuses into phases
type StatusMapper struct {
	rules []PhaseRule
}

// NewStatusMapper creates a mapper evaluating rules in the given order
func NewStatusMapper(rules ...PhaseRule) *StatusMapper {
	m := &StatusMapper{rules: make([]PhaseRule, 0, len(rules))}
	for _, rule := range rules {
		m.Register(rule)
	}
	return m
}

// Register appends a rule after the existing ones
func (m *StatusMapper) Register(rule PhaseRule) {
	m.rules = append(m.rules, rule)
}

// MapCarrierStatus returns the phase of the first matching rule, or unknown
func (m *StatusMapper) MapCarrierStatus(raw string) entity.Phase {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return entity.PhaseUnknown
	}
	for _, rule := range m.rules {
		if rule.Matches(status) {
			return rule.Phase
		}
	}
	return entity.PhaseUnknown
}

var defaultMapper = NewStatusMapper(DefaultCarrierRules...)

// MapCarrierStatus maps raw with the default carrier rules
func MapCarrierStatus(raw string) entity.Phase {
	return defaultMapper.MapCarrierStatus(raw)
}

// StatusForPhase derives the lifecycle status of a phase
func StatusForPhase(phase entity.Phase) entity.LifecycleStatus {
	switch phase {
	case entity.PhasePreCheckIn, entity.PhaseBoarding, entity.PhaseGateClosed:
		return entity.StatusScheduled
	case entity.PhaseDeparted, entity.PhaseInFlight, entity.PhaseLanding:
		return entity.StatusInProgress
	case entity.PhaseLanded, entity.PhaseArrived:
		return entity.StatusCompleted
	case entity.PhaseCancelled:
		return entity.StatusCancelled
	case entity.PhaseDiverted:
		return entity.StatusDiverted
	default:
		return entity.StatusUnknown
	}
}
