package entity

import "time"

// Journey event types
const (
	EventStatusChange  = "status_change"
	EventPhaseChange   = "phase_change"
	EventBatchPushSent = "batch_push_notification_sent"
)

// JourneyEvent is a row of the user-visible journey timeline
type JourneyEvent struct {
	ID          string
	JourneyID   string
	EventType   string
	Title       string
	Description string
	Metadata    map[string]interface{}
	OccurredAt  time.Time
}

// Notification outcomes
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
	NotificationPartial = "partial"
)

// NotificationEvent is the append-only audit record of a dispatch attempt
type NotificationEvent struct {
	ID        string            `bson:"_id,omitempty"`
	UserID    string            `bson:"userId,omitempty"`
	JourneyID string            `bson:"journeyId,omitempty"`
	Provider  string            `bson:"provider"`
	Type      string            `bson:"type"`
	Title     string            `bson:"title"`
	Body      string            `bson:"body"`
	Data      map[string]string `bson:"data,omitempty"`
	Targets   int               `bson:"targets"`
	Sent      int               `bson:"sent"`
	Failed    int               `bson:"failed"`
	Outcome   string            `bson:"outcome"`
	Errors    []string          `bson:"errors,omitempty"`
	CreatedAt time.Time         `bson:"createdAt"`
}
