package templates

import (
	"fmt"
	"strings"
)

// Notification types accepted besides the phase names
const (
	TypeDelay          = "delay"
	TypeCancellation   = "cancellation"
	TypeBoarding       = "boarding"
	TypeDeparture      = "departure"
	TypeArrival        = "arrival"
	TypeGateChange     = "gate_change"
	TypeTerminalChange = "terminal_change"
	TypeStatusChange   = "status_change"
)

// FlightContext is what a notification text may mention
type FlightContext struct {
	Carrier      string
	FlightNumber string
	AirlineName  string
	From         string
	To           string
	Phase        string
	Status       string
	Gate         string
	OldGate      string
	Terminal     string
	OldTerminal  string
}

// Code returns carrier+number, or "Your flight"
func (c FlightContext) Code() string {
	if c.Carrier == "" || c.FlightNumber == "" {
		return "Your flight"
	}
	return c.Carrier + c.FlightNumber
}

// Route returns "from → to" when both ends are known
func (c FlightContext) Route() string {
	if c.From == "" || c.To == "" {
		return ""
	}
	return c.From + " → " + c.To
}

// Notification is a rendered push text
type Notification struct {
	Title string
	Body  string
	Stage string
}

type entry struct {
	title string
	body  string // %s is the flight code
	stage string
}

var phaseEntries = map[string]entry{
	"pre_check_in":  {"Check-in Available", "Check-in is now available for %s.", "pre_check_in"},
	"check_in_open": {"Check-in Open", "Check-in is now open for %s. Don't forget to check in.", "check_in"},
	"at_airport":    {"At the Airport", "Welcome! %s - check in and prepare for boarding.", "at_airport"},
	"boarding":      {"Flight Boarding", "%s is now boarding! Please proceed to the gate.", "boarding"},
	"gate_closed":   {"Gate Closed", "Gate is now closed for %s. Please contact airline staff.", "gate_closed"},
	"departed":      {"Flight Departed", "%s has departed. Enjoy your journey!", "departed"},
	"in_flight":     {"In Flight", "%s is now in the air. Enjoy your flight!", "in_flight"},
	"landed":        {"Flight Landed", "%s has landed. Welcome to your destination!", "landed"},
	"arrived":       {"Flight Arrived", "%s has arrived. Thank you for flying with us!", "arrived"},
	"baggage_claim": {"Baggage Claim", "%s has arrived. Please proceed to baggage claim.", "baggage_claim"},
	"completed":     {"Journey Complete", "Your journey on %s is complete. Thank you for flying with us.", "completed"},
	"cancelled":     {"Flight Cancelled", "%s has been cancelled. Please contact airline for assistance.", "cancelled"},
	"diverted":      {"Flight Diverted", "%s has been diverted. Please check the app for updates.", "diverted"},
}

var typeEntries = map[string]entry{
	TypeDelay:        {"Flight Delayed", "%s has been delayed. Please check for updates.", "delay"},
	TypeCancellation: phaseEntries["cancelled"],
	TypeBoarding:     phaseEntries["boarding"],
	TypeDeparture:    phaseEntries["departed"],
	TypeArrival:      {"Flight Arrived", "%s has arrived. Welcome to your destination!", "arrived"},
}

// HasPhase reports whether phase has its own notification text
func HasPhase(phase string) bool {
	_, ok := phaseEntries[phase]
	return ok
}

// Content renders the notification for a type or phase tag. Unknown tags
// and status_change fall back to the text of ctx.Phase, then to a generic update.
func Content(tag string, ctx FlightContext) Notification {
	var n Notification
	switch tag {
	case TypeGateChange:
		n = gateChange(ctx)
	case TypeTerminalChange:
		n = terminalChange(ctx)
	default:
		e, ok := typeEntries[tag]
		if !ok {
			e, ok = phaseEntries[tag]
		}
		if !ok {
			e, ok = phaseEntries[ctx.Phase]
		}
		if !ok {
			n = generic(ctx)
			break
		}
		n = Notification{Title: e.title, Body: fmt.Sprintf(e.body, ctx.Code()), Stage: e.stage}
	}

	if ctx.AirlineName != "" && ctx.FlightNumber != "" {
		n.Title = fmt.Sprintf("%s - %s %s", n.Title, ctx.AirlineName, ctx.FlightNumber)
	}
	if route := ctx.Route(); route != "" {
		n.Body = n.Body + " " + route
	}
	return n
}

func generic(ctx FlightContext) Notification {
	state := ctx.Phase
	if state == "" || state == "unknown" {
		state = ctx.Status
	}
	body := fmt.Sprintf("%s status has been updated.", ctx.Code())
	if state != "" {
		body = fmt.Sprintf("%s status has been updated to %s.", ctx.Code(), humanize(state))
	}
	return Notification{Title: "Flight Status Update", Body: body, Stage: TypeStatusChange}
}

func gateChange(ctx FlightContext) Notification {
	switch {
	case ctx.OldGate != "" && ctx.Gate != "" && ctx.OldGate != ctx.Gate:
		return Notification{
			Title: "Gate Changed",
			Body:  fmt.Sprintf("Your gate has changed from Gate %s to Gate %s. Please proceed to Gate %s.", ctx.OldGate, ctx.Gate, ctx.Gate),
			Stage: TypeGateChange,
		}
	case ctx.Gate != "":
		return Notification{
			Title: "Gate Assigned",
			Body:  fmt.Sprintf("Your gate is Gate %s. Please proceed to Gate %s.", ctx.Gate, ctx.Gate),
			Stage: TypeGateChange,
		}
	default:
		return Notification{
			Title: "Gate Update",
			Body:  fmt.Sprintf("Gate information for %s has been updated.", ctx.Code()),
			Stage: TypeGateChange,
		}
	}
}

func terminalChange(ctx FlightContext) Notification {
	switch {
	case ctx.OldTerminal != "" && ctx.Terminal != "" && ctx.OldTerminal != ctx.Terminal:
		return Notification{
			Title: "Terminal Changed",
			Body:  fmt.Sprintf("Your terminal has changed from Terminal %s to Terminal %s. Please proceed to Terminal %s.", ctx.OldTerminal, ctx.Terminal, ctx.Terminal),
			Stage: TypeTerminalChange,
		}
	case ctx.Terminal != "":
		return Notification{
			Title: "Terminal Assigned",
			Body:  fmt.Sprintf("Your terminal is Terminal %s. Please proceed to Terminal %s.", ctx.Terminal, ctx.Terminal),
			Stage: TypeTerminalChange,
		}
	default:
		return Notification{
			Title: "Terminal Update",
			Body:  fmt.Sprintf("Terminal information for %s has been updated.", ctx.Code()),
			Stage: TypeTerminalChange,
		}
	}
}

func humanize(tag string) string {
	return strings.ReplaceAll(tag, "_", " ")
}
