package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Source identifies this service in every published event.
const Source = "exam-central"

// Event types published by the service.
const (
	TypeExamCreated      = "exam.created"
	TypeExamDeactivated  = "exam.deactivated"
	TypeAttemptSubmitted = "attempt.submitted"
	TypeAttemptGraded    = "attempt.graded"
	TypeNotification     = "system.notification"
)

// Event is the envelope published to downstream consumers.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(eventType string, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     Source,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// EventPublisher abstracts the message transport. Publishing is
// best-effort from the caller's point of view: services log failures
// but never fail the originating operation on one.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
