package dto

import (
	"time"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/notify"
)

// LoginRequest payload.
type LoginRequest struct {
	LoginID string `json:"login_id"`
}

// LoginResponse payload.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
}

// PresenceRequest payload.
type PresenceRequest struct {
	Present *bool `json:"present"`
}

// MuteRequest payload.
type MuteRequest struct {
	Muted *bool `json:"muted"`
}

// StateResponse describes the desk.
type StateResponse struct {
	SessionID      string             `json:"session_id"`
	UserID         string             `json:"user_id"`
	UserName       string             `json:"user_name"`
	StatusIssueID  string             `json:"status_issue_id,omitempty"`
	Present        bool               `json:"present"`
	RemoteStatusID int64              `json:"remote_status_id,omitempty"`
	Muted          bool               `json:"muted"`
	Teams          []string           `json:"teams"`
	StatusIDs      domain.StatusIDMap `json:"status_ids"`
	Tickets        []TicketResponse   `json:"tickets"`
}

// NotificationsResponse lists live toasts and flashes.
type NotificationsResponse struct {
	Toasts  []notify.Toast `json:"toasts"`
	Flashes []notify.Flash `json:"flashes"`
	Muted   bool           `json:"muted"`
}

// TransitionResponse is one journal entry.
type TransitionResponse struct {
	ID        string         `json:"id"`
	IssueID   string         `json:"issue_id"`
	Kind      string         `json:"kind"`
	StatusID  int64          `json:"status_id"`
	Outcome   string         `json:"outcome"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTransitionResponses renders journal entries.
func NewTransitionResponses(items []domain.Transition) []TransitionResponse {
	out := make([]TransitionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, TransitionResponse{
			ID:        t.ID,
			IssueID:   t.IssueID,
			Kind:      string(t.Kind),
			StatusID:  t.StatusID,
			Outcome:   string(t.Outcome),
			Detail:    t.Detail,
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}

// WebhookAck acknowledges an ingested webhook.
type WebhookAck struct {
	Status   string `json:"status"`
	EventID  string `json:"event_id"`
	IsTicket bool   `json:"is_ticket"`
}
