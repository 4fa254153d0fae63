package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/notify"
	"github.com/spec-kit/presence-desk/internal/push"
)

// Desk is one logged-in staff session: its presence record, its inbox,
// its notifications and its push connection.
type Desk struct {
	Session   domain.UserSession
	Presence  *PresenceService
	Inbox     *InboxService
	Sink      *notify.Sink
	Directory *StatusDirectory

	store  *deskStore
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// DeskState is a read model of the desk for the UI.
type DeskState struct {
	SessionID      string             `json:"session_id"`
	UserID         string             `json:"user_id"`
	UserName       string             `json:"user_name"`
	StatusIssueID  string             `json:"status_issue_id,omitempty"`
	Present        bool               `json:"present"`
	RemoteStatusID int64              `json:"remote_status_id,omitempty"`
	Muted          bool               `json:"muted"`
	Teams          []string           `json:"teams"`
	Tickets        []domain.Ticket    `json:"tickets"`
	Statuses       domain.StatusIDMap `json:"status_ids"`
	StartedAt      time.Time          `json:"started_at"`
}

// State snapshots the desk.
func (d *Desk) State(ctx context.Context) DeskState {
	presence := d.Presence.State()
	return DeskState{
		SessionID:      d.Session.SessionID,
		UserID:         d.Session.UserID,
		UserName:       d.Session.UserName,
		StatusIssueID:  d.Presence.Binding(),
		Present:        presence.IsPresent,
		RemoteStatusID: presence.RemoteStatusID,
		Muted:          d.Sink.Muted(),
		Teams:          d.Presence.Teams(),
		Tickets:        d.Inbox.Tickets(),
		Statuses:       d.Presence.Statuses(ctx),
		StartedAt:      d.Session.StartedAt,
	}
}

// initialize brings a new or resumed desk up to date with the tracker.
func (d *Desk) initialize(ctx context.Context, resumed bool) {
	d.Sink.Restore(ctx)
	if resumed {
		d.Presence.Restore(ctx)
	}

	if _, ok := d.Presence.ResolveIssueID(ctx); !ok {
		d.logger.Warn("presence sync disabled until an issue is bound")
	}
	d.Presence.Statuses(ctx)

	if d.Presence.Binding() != "" {
		if err := d.Presence.FetchCurrent(ctx); err != nil {
			d.logger.Warn("using persisted presence", zap.Error(err))
			d.Presence.Restore(ctx)
		}
	}

	if !d.Inbox.Restore(ctx) && d.Presence.IsPresent() {
		if err := d.Inbox.Refresh(ctx); err != nil {
			d.logger.Warn("initial ticket refresh failed", zap.Error(err))
		}
	}
}

// handleWebhook forwards ticket events to the inbox while the user is
// present. Events for an absent user are dropped.
func (d *Desk) handleWebhook(ctx context.Context, event domain.WebhookEvent) {
	if !event.IsTicket {
		return
	}
	if !d.Presence.IsPresent() {
		d.logger.Debug("ticket event dropped while absent", zap.String("event_id", event.EventID))
		return
	}
	var ticket domain.PushTicket
	if err := json.Unmarshal(event.Data, &ticket); err != nil {
		d.logger.Warn("ticket event payload undecodable", zap.String("event_id", event.EventID), zap.Error(err))
		return
	}
	ticket.FallbackID = event.EventID
	d.Inbox.OnPush(ctx, ticket)
}

// startChannel runs the push connection until stop.
func (d *Desk) startChannel(url string, backoff time.Duration) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.mu.Lock()
	d.cancel, d.done = cancel, done
	d.mu.Unlock()

	channel := push.NewChannel(url, backoff, d.handleWebhook, d.logger.Named("push"))
	go func() {
		defer close(done)
		channel.Run(ctx)
	}()
}

func (d *Desk) stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
