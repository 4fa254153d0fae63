package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/tracker"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// PresenceLink is what the inbox needs from the presence record.
type PresenceLink interface {
	Binding() string
	IsPresent() bool
	Statuses(ctx context.Context) domain.StatusIDMap
	ForceAbsent(ctx context.Context)
}

// InboxService holds the tickets assigned to the present user.
//
// Refresh responses and pushes may interleave. Every mutation takes a
// sequence number; a refresh response is applied only if no later refresh
// was applied first, keeps tickets pushed after it was issued and drops
// tickets removed after it was issued.
type InboxService struct {
	session          domain.UserSession
	billingProjectID string
	client           tracker.Client
	presence         PresenceLink
	store            persistence.SessionStore
	dispatcher       events.Dispatcher
	journal          *Journal
	logger           *zap.Logger
	settleDelay      time.Duration
	wait             func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	tickets     []domain.Ticket
	seq         uint64
	lastApplied uint64
	pushedAt    map[string]uint64
	removedAt   map[string]uint64
}

// InboxDependencies bundles collaborators for the inbox.
type InboxDependencies struct {
	BillingProjectID string
	Client           tracker.Client
	Presence         PresenceLink
	Store            persistence.SessionStore
	Dispatcher       events.Dispatcher
	Journal          *Journal
	Logger           *zap.Logger
	SettleDelay      time.Duration
}

// NewInboxService constructs the inbox.
func NewInboxService(session domain.UserSession, deps InboxDependencies) *InboxService {
	return &InboxService{
		session:          session,
		billingProjectID: deps.BillingProjectID,
		client:           deps.Client,
		presence:         deps.Presence,
		store:            deps.Store,
		dispatcher:       deps.Dispatcher,
		journal:          deps.Journal,
		logger:           deps.Logger.With(zap.String("user_id", session.UserID)),
		settleDelay:      deps.SettleDelay,
		wait:             sleepContext,
		pushedAt:         make(map[string]uint64),
		removedAt:        make(map[string]uint64),
	}
}

// Tickets returns a snapshot in arrival order.
func (s *InboxService) Tickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Ticket{}, s.tickets...)
}

// Refresh replaces the inbox with the user's processing tickets.
func (s *InboxService) Refresh(ctx context.Context) error {
	processing := s.presence.Statuses(ctx).ID(domain.StatusProcessing)
	if processing <= 0 {
		return nil
	}

	s.mu.Lock()
	s.seq++
	issued := s.seq
	s.mu.Unlock()

	issues, err := s.client.ListIssues(ctx, tracker.IssueQuery{
		ProjectIDs:  []string{s.billingProjectID},
		AssigneeIDs: []string{s.session.UserID},
		StatusIDs:   []int64{processing},
		Sort:        "created",
		Order:       "asc",
		Privileged:  true,
	})
	if err != nil {
		wrapped := apperrors.NewRemoteReadFailure("refresh tickets", err)
		publishFailure(ctx, s.dispatcher, s.logger, s.session, "refresh tickets", wrapped, events.SeverityError)
		return wrapped
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if issued < s.lastApplied {
		s.logger.Debug("stale refresh discarded", zap.Uint64("issued", issued), zap.Uint64("last_applied", s.lastApplied))
		return nil
	}
	s.lastApplied = issued

	result := make([]domain.Ticket, 0, len(issues))
	seen := make(map[string]struct{}, len(issues))
	for _, issue := range issues {
		t := issue.Ticket()
		if _, dup := seen[t.ID]; dup {
			continue
		}
		if s.removedAt[t.ID] > issued {
			continue
		}
		seen[t.ID] = struct{}{}
		result = append(result, t)
	}
	for _, t := range s.tickets {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		if s.pushedAt[t.ID] > issued {
			seen[t.ID] = struct{}{}
			result = append(result, t)
		}
	}
	s.pruneLocked(issued)
	s.tickets = result
	s.persistLocked(ctx)
	return nil
}

// OnPush adds a pushed ticket when it is addressed to the user. It reports
// whether a new ticket arrived. A payload without an id is kept under its
// fallback id (or a fresh one) and is never merged with another ticket.
func (s *InboxService) OnPush(ctx context.Context, push domain.PushTicket) bool {
	if !push.AssignedTo(s.session.UserID) {
		s.logger.Debug("push ticket for another user ignored", zap.String("ticket_id", string(push.ID)))
		return false
	}
	ticket := push.Ticket()
	if ticket.Local && ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.seq++
	s.pushedAt[ticket.ID] = s.seq
	delete(s.removedAt, ticket.ID)
	if !ticket.Local {
		for i := range s.tickets {
			if s.tickets[i].ID == ticket.ID {
				s.tickets[i] = ticket
				s.persistLocked(ctx)
				s.mu.Unlock()
				return false
			}
		}
	}
	s.tickets = append(s.tickets, ticket)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.logger.Info("ticket arrived", zap.String("ticket_id", ticket.ID))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketArrived, s.session, events.TicketPayload{Ticket: ticket}))
	return true
}

// Complete moves the ticket to the completed status and drops it locally
// once the tracker acknowledged.
func (s *InboxService) Complete(ctx context.Context, ticketID string) error {
	ticket, err := s.trackedTicket(ticketID)
	if err != nil {
		return err
	}
	completed := s.presence.Statuses(ctx).ID(domain.StatusCompleted)
	entry := domain.Transition{
		SessionID: s.session.SessionID,
		UserID:    s.session.UserID,
		IssueID:   ticketID,
		Kind:      domain.TransitionComplete,
		StatusID:  completed,
	}

	if err := s.client.UpdateIssueStatus(ctx, ticketID, completed); err != nil {
		wrapped := apperrors.NewRemoteWriteFailure("complete ticket", err, map[string]any{"ticket_id": ticketID})
		entry.Outcome = domain.OutcomeFailed
		entry.Detail = map[string]any{"error": err.Error()}
		s.journal.Record(ctx, entry)
		publishFailure(ctx, s.dispatcher, s.logger, s.session, "complete ticket", wrapped, events.SeverityError)
		return wrapped
	}

	s.remove(ctx, ticketID)
	entry.Outcome = domain.OutcomeApplied
	s.journal.Record(ctx, entry)
	s.logger.Info("ticket completed", zap.String("ticket_id", ticketID))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketCompleted, s.session, events.TicketPayload{Ticket: ticket}))
	return nil
}

// Return bounces the ticket and marks the user absent. Both tracker writes
// run concurrently. If only one of them lands it is reverted and the inbox
// is left as it was.
func (s *InboxService) Return(ctx context.Context, ticketID string) error {
	ticket, err := s.trackedTicket(ticketID)
	if err != nil {
		return err
	}
	binding := s.presence.Binding()
	if binding == "" {
		err := apperrors.NewBindingUnresolved(s.session.UserID)
		publishFailure(ctx, s.dispatcher, s.logger, s.session, "return ticket", err, events.SeverityWarning)
		return err
	}

	statuses := s.presence.Statuses(ctx)
	returned := statuses.ID(domain.StatusReturned)
	absent := statuses.ID(domain.StatusAbsent)
	previousPresence := statuses.ID(domain.PresenceKey(s.presence.IsPresent()))

	var (
		wg          sync.WaitGroup
		ticketErr   error
		presenceErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ticketErr = s.client.UpdateIssueStatus(ctx, ticketID, returned)
	}()
	go func() {
		defer wg.Done()
		presenceErr = s.client.UpdateIssueStatus(ctx, binding, absent)
	}()
	wg.Wait()

	entry := domain.Transition{
		SessionID: s.session.SessionID,
		UserID:    s.session.UserID,
		IssueID:   ticketID,
		Kind:      domain.TransitionReturn,
		StatusID:  returned,
		Detail:    map[string]any{"presence_issue_id": binding, "absent_status_id": absent},
	}

	switch {
	case ticketErr == nil && presenceErr == nil:
		if err := s.wait(ctx, s.settleDelay); err != nil {
			s.logger.Debug("settle delay interrupted", zap.Error(err))
		}
		// Both writes landed; the local state and its shadow copy follow
		// even if the caller went away during the wait.
		applyCtx := context.WithoutCancel(ctx)
		s.presence.ForceAbsent(applyCtx)
		s.remove(applyCtx, ticketID)
		entry.Outcome = domain.OutcomeApplied
		s.journal.Record(applyCtx, entry)
		s.logger.Info("ticket returned", zap.String("ticket_id", ticketID))
		publish(applyCtx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketReturned, s.session, events.TicketPayload{Ticket: ticket}))
		return nil

	case ticketErr != nil && presenceErr != nil:
		joined := errors.Join(ticketErr, presenceErr)
		wrapped := apperrors.NewRemoteWriteFailure("return ticket", joined, map[string]any{"ticket_id": ticketID})
		entry.Outcome = domain.OutcomeFailed
		entry.Detail["error"] = joined.Error()
		s.journal.Record(ctx, entry)
		publishFailure(ctx, s.dispatcher, s.logger, s.session, "return ticket", wrapped, events.SeverityError)
		return wrapped
	}

	// Exactly one write landed: revert it.
	compensateCtx := context.WithoutCancel(ctx)
	details := map[string]any{
		"ticket_id":        ticketID,
		"ticket_written":   ticketErr == nil,
		"presence_written": presenceErr == nil,
	}
	var cause, compensationErr error
	if ticketErr == nil {
		cause = presenceErr
		processing := statuses.ID(domain.StatusProcessing)
		compensationErr = s.client.UpdateIssueStatus(compensateCtx, ticketID, processing)
	} else {
		cause = ticketErr
		compensationErr = s.client.UpdateIssueStatus(compensateCtx, binding, previousPresence)
	}
	details["compensated"] = compensationErr == nil
	entry.Outcome = domain.OutcomeCompensated
	entry.Detail["error"] = cause.Error()
	if compensationErr != nil {
		s.logger.Error("return compensation failed", zap.String("ticket_id", ticketID), zap.Error(compensationErr))
		details["compensation_error"] = compensationErr.Error()
		entry.Outcome = domain.OutcomePartial
		entry.Detail["compensation_error"] = compensationErr.Error()
	}
	s.journal.Record(ctx, entry)

	wrapped := apperrors.NewPartialWriteFailure("return ticket", cause, details)
	publishFailure(ctx, s.dispatcher, s.logger, s.session, "return ticket", wrapped, events.SeverityError)
	return wrapped
}

// Clear drops every ticket locally. Refresh responses issued before the
// clear are discarded.
func (s *InboxService) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	for _, t := range s.tickets {
		s.removedAt[t.ID] = s.seq
		delete(s.pushedAt, t.ID)
	}
	s.lastApplied = s.seq
	s.tickets = nil
	s.persistLocked(ctx)
}

// Restore loads the persisted tickets and reports whether any were found.
func (s *InboxService) Restore(ctx context.Context) bool {
	if s.store == nil {
		return false
	}
	raw, ok, err := s.store.Get(ctx, domain.KeyTickets)
	if err != nil || !ok || raw == "" {
		return false
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal([]byte(raw), &tickets); err != nil {
		s.logger.Warn("persisted tickets unreadable", zap.Error(err))
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = tickets
	return len(tickets) > 0
}

func (s *InboxService) find(ticketID string) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ID == ticketID {
			return t, true
		}
	}
	return domain.Ticket{}, false
}

// trackedTicket finds a ticket that can be written back to the tracker.
func (s *InboxService) trackedTicket(ticketID string) (domain.Ticket, error) {
	ticket, ok := s.find(ticketID)
	if !ok {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Local {
		return domain.Ticket{}, apperrors.NewValidationError("ticket has no tracker id", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (s *InboxService) remove(ctx context.Context, ticketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.removedAt[ticketID] = s.seq
	delete(s.pushedAt, ticketID)
	kept := s.tickets[:0]
	for _, t := range s.tickets {
		if t.ID != ticketID {
			kept = append(kept, t)
		}
	}
	s.tickets = kept
	s.persistLocked(ctx)
}

func (s *InboxService) pruneLocked(upTo uint64) {
	for id, seq := range s.pushedAt {
		if seq <= upTo {
			delete(s.pushedAt, id)
		}
	}
	for id, seq := range s.removedAt {
		if seq <= upTo {
			delete(s.removedAt, id)
		}
	}
}

func (s *InboxService) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	tickets := s.tickets
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	raw, err := json.Marshal(tickets)
	if err != nil {
		s.logger.Warn("tickets not serializable", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, domain.KeyTickets, string(raw)); err != nil {
		s.logger.Warn("session store write failed", zap.String("key", domain.KeyTickets), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
