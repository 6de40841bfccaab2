package templates

import "fmt"

// EventTitle is the timeline title of a status change into phase
func EventTitle(phase string) string {
	switch phase {
	case "boarding":
		return "Flight Boarding"
	case "gate_closed":
		return "Gate Closed"
	case "departed":
		return "Flight Departed"
	case "in_flight":
		return "In Flight"
	case "landed":
		return "Flight Landed"
	case "arrived":
		return "Flight Arrived"
	case "cancelled":
		return "Flight Cancelled"
	case "diverted":
		return "Flight Diverted"
	case "delayed":
		return "Flight Delayed"
	default:
		return "Status Update"
	}
}

// EventDescription is the timeline text of a status change into phase
func EventDescription(phase, flight string) string {
	switch phase {
	case "boarding":
		return fmt.Sprintf("Flight %s is now boarding. Please proceed to the gate.", flight)
	case "gate_closed":
		return fmt.Sprintf("Gate is now closed for flight %s. Please contact airline staff.", flight)
	case "departed":
		return fmt.Sprintf("Flight %s has departed. Enjoy your journey!", flight)
	case "in_flight":
		return fmt.Sprintf("Flight %s is in progress.", flight)
	case "landed":
		return fmt.Sprintf("Flight %s has landed.", flight)
	case "arrived":
		return fmt.Sprintf("Flight %s has arrived. Welcome to your destination!", flight)
	case "cancelled":
		return fmt.Sprintf("Flight %s has been cancelled. Please contact airline for assistance.", flight)
	case "diverted":
		return fmt.Sprintf("Flight %s has been diverted.", flight)
	case "delayed":
		return fmt.Sprintf("Flight %s has been delayed. Please check for updates.", flight)
	default:
		return fmt.Sprintf("Flight %s status has been updated.", flight)
	}
}

// PhaseChangeDescription is the timeline text of an explicit phase change
func PhaseChangeDescription(previous, next string) string {
	if previous == "" {
		previous = "unknown"
	}
	return fmt.Sprintf("Phase changed from %s to %s", previous, next)
}
