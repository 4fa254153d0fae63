package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/presence-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketArrived   EventType = "ticket_arrived"
	EventTicketCompleted EventType = "ticket_completed"
	EventTicketReturned  EventType = "ticket_returned"
	EventPresenceChanged EventType = "presence_changed"
	EventOperationFailed EventType = "operation_failed"
	EventMuteChanged     EventType = "mute_changed"
)

// Event represents a desk event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, session domain.UserSession, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: session.SessionID,
		UserID:    session.UserID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketPayload carries the affected ticket.
type TicketPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// PresenceChangedPayload payload. Remote is true when the tracker write
// succeeded, false for local-only changes.
type PresenceChangedPayload struct {
	Present bool `json:"present"`
	Remote  bool `json:"remote"`
}

// Severity of a failure as shown to the user.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// OperationFailedPayload payload.
type OperationFailedPayload struct {
	Operation string   `json:"operation"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// MuteChangedPayload payload.
type MuteChangedPayload struct {
	Muted bool `json:"muted"`
}
