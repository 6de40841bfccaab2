package entity

// ClickActionFlightStatus opens the flight status screen on tap
const ClickActionFlightStatus = "FLIGHT_STATUS_UPDATE"

// AndroidChannelID is the notification channel registered by the mobile app
const AndroidChannelID = "high_importance_channel"

// PushMessage is a provider-neutral push notification.
// Exactly one of Token or Topic is set.
type PushMessage struct {
	Token string
	Topic string
	Title string
	Body  string
	Data  map[string]string
}

// PushResult is the gateway verdict for one message
type PushResult struct {
	Token     string `json:"token,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether the gateway accepted the message
func (r PushResult) OK() bool {
	return r.Error == ""
}

// DispatchResult tallies one dispatch across all resolved destinations
type DispatchResult struct {
	Success  bool         `json:"success"`
	Skipped  bool         `json:"skipped,omitempty"`
	Message  string       `json:"message,omitempty"`
	Provider PushProvider `json:"provider,omitempty"`
	Sent     int          `json:"sent"`
	Failed   int          `json:"failed"`
	Errors   []string     `json:"errors,omitempty"`
	Results  []PushResult `json:"results,omitempty"`
}

// Outcome condenses the tallies into an audit outcome
func (d DispatchResult) Outcome() string {
	switch {
	case d.Skipped:
		return NotificationSkipped
	case d.Failed == 0 && d.Sent > 0:
		return NotificationSent
	case d.Sent == 0:
		return NotificationFailed
	default:
		return NotificationPartial
	}
}
