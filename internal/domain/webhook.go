package domain

import (
	"encoding/json"
	"time"
)

// Event types of the webhook source that carry a ticket.
var TicketEventTypes = map[string]struct{}{
	"processing_ticket":     {},
	"patient_registration":  {},
	"appointment_scheduled": {},
}

// IsTicketEventType reports whether eventType denotes a ticket.
func IsTicketEventType(eventType string) bool {
	_, ok := TicketEventTypes[eventType]
	return ok
}

// WebhookEvent is one relayed webhook as streamed to desks.
type WebhookEvent struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	SourceIP  string          `json:"source_ip"`
	Method    string          `json:"method"`
	IsTicket  bool            `json:"is_ticket"`
}
