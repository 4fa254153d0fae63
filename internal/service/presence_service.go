package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/tracker"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// PresenceService keeps one user's presence issue in sync with the desk
// toggle. Local state is updated first; the tracker write follows.
type PresenceService struct {
	session        domain.UserSession
	staffProjectID string
	client         tracker.Client
	directory      *StatusDirectory
	store          persistence.SessionStore
	dispatcher     events.Dispatcher
	journal        *Journal
	logger         *zap.Logger

	mu      sync.RWMutex
	binding string
	state   domain.PresenceState
	teams   []string
}

// PresenceDependencies bundles collaborators for the presence service.
type PresenceDependencies struct {
	StaffProjectID string
	Client         tracker.Client
	Directory      *StatusDirectory
	Store          persistence.SessionStore
	Dispatcher     events.Dispatcher
	Journal        *Journal
	Logger         *zap.Logger
}

// NewPresenceService constructs the service.
func NewPresenceService(session domain.UserSession, deps PresenceDependencies) *PresenceService {
	return &PresenceService{
		session:        session,
		staffProjectID: deps.StaffProjectID,
		client:         deps.Client,
		directory:      deps.Directory,
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		journal:        deps.Journal,
		logger:         deps.Logger.With(zap.String("user_id", session.UserID)),
		binding:        session.StatusIssueID,
	}
}

// UserID returns the bound user.
func (p *PresenceService) UserID() string {
	return p.session.UserID
}

// Binding returns the presence issue id, or "" when unbound.
func (p *PresenceService) Binding() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.binding
}

// IsPresent reports the cached presence.
func (p *PresenceService) IsPresent() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.IsPresent
}

// State returns the cached presence state.
func (p *PresenceService) State() domain.PresenceState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Teams lists the categories of the presence issue.
func (p *PresenceService) Teams() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string{}, p.teams...)
}

// Statuses resolves the status ids of the staff project.
func (p *PresenceService) Statuses(ctx context.Context) domain.StatusIDMap {
	return p.directory.Resolve(ctx, p.staffProjectID)
}

// ResolveIssueID binds the user's presence issue and seeds presence from its
// status. It fails soft and reports whether a binding exists.
func (p *PresenceService) ResolveIssueID(ctx context.Context) (string, bool) {
	return p.resolve(ctx, true)
}

func (p *PresenceService) resolve(ctx context.Context, seed bool) (string, bool) {
	if binding := p.Binding(); binding != "" {
		return binding, true
	}

	issues, err := p.client.ListIssues(ctx, tracker.IssueQuery{
		ProjectIDs:  []string{p.staffProjectID},
		AssigneeIDs: []string{p.session.UserID},
	})
	if err != nil {
		p.logger.Warn("presence issue lookup failed", zap.Error(err))
		return "", false
	}
	if len(issues) == 0 {
		p.logger.Warn("no presence issue assigned to user")
		return "", false
	}
	issue := issues[0]

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.binding != "" {
		return p.binding, true
	}
	p.binding = issue.IDString()
	p.teams = issue.CategoryNames()
	p.persistLocked(ctx, domain.KeyStatusIssueID, p.binding)
	if seed {
		p.seedLocked(ctx, issue)
	}
	p.logger.Info("presence issue bound", zap.String("issue_id", p.binding), zap.Bool("present", p.state.IsPresent))
	return p.binding, true
}

// seedLocked applies the issue's status when it is a presence status.
func (p *PresenceService) seedLocked(ctx context.Context, issue tracker.Issue) {
	if issue.Status == nil {
		return
	}
	key, ok := domain.StatusNames[issue.Status.Name]
	if !ok || (key != domain.StatusPresent && key != domain.StatusAbsent) {
		return
	}
	p.state = domain.PresenceState{IsPresent: key == domain.StatusPresent, RemoteStatusID: issue.Status.ID}
	p.persistLocked(ctx, domain.KeyUserStatus, p.state.UserStatus())
}

// FetchCurrent reads the presence issue and applies its status locally. Any
// status other than present reads as absent.
func (p *PresenceService) FetchCurrent(ctx context.Context) error {
	binding := p.Binding()
	if binding == "" {
		return apperrors.NewBindingUnresolved(p.session.UserID)
	}
	issue, err := p.client.GetIssue(ctx, binding)
	if err != nil {
		p.logger.Warn("presence fetch failed", zap.String("issue_id", binding), zap.Error(err))
		return apperrors.NewRemoteReadFailure("fetch presence", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.teams = issue.CategoryNames()
	if issue.Status == nil {
		return nil
	}
	key := domain.StatusNames[issue.Status.Name]
	p.state = domain.PresenceState{IsPresent: key == domain.StatusPresent, RemoteStatusID: issue.Status.ID}
	p.persistLocked(ctx, domain.KeyUserStatus, p.state.UserStatus())
	return nil
}

// Restore loads the persisted binding and presence.
func (p *PresenceService) Restore(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.binding == "" {
		if v, ok := p.load(ctx, domain.KeyStatusIssueID); ok {
			p.binding = v
		}
	}
	if v, ok := p.load(ctx, domain.KeyUserStatus); ok {
		p.state = domain.PresenceState{IsPresent: v == domain.UserStatusPresent}
	}
}

// SetPresence updates local presence and, when shouldSync, writes it to the
// presence issue. A failed write is reported but not rolled back.
func (p *PresenceService) SetPresence(ctx context.Context, isPresent, shouldSync bool) error {
	p.mu.Lock()
	p.state = domain.PresenceState{IsPresent: isPresent}
	p.persistLocked(ctx, domain.KeyUserStatus, p.state.UserStatus())
	p.mu.Unlock()

	if !shouldSync {
		return nil
	}

	binding, ok := p.resolve(ctx, false)
	if !ok {
		err := apperrors.NewBindingUnresolved(p.session.UserID)
		publishFailure(ctx, p.dispatcher, p.logger, p.session, "set presence", err, events.SeverityWarning)
		return err
	}

	statusID := p.Statuses(ctx).ID(domain.PresenceKey(isPresent))
	entry := domain.Transition{
		SessionID: p.session.SessionID,
		UserID:    p.session.UserID,
		IssueID:   binding,
		Kind:      domain.TransitionPresence,
		StatusID:  statusID,
	}
	if err := p.client.UpdateIssueStatus(ctx, binding, statusID); err != nil {
		wrapped := apperrors.NewRemoteWriteFailure("set presence", err, map[string]any{"issue_id": binding, "status_id": statusID})
		entry.Outcome = domain.OutcomeFailed
		entry.Detail = map[string]any{"error": err.Error()}
		p.journal.Record(ctx, entry)
		publishFailure(ctx, p.dispatcher, p.logger, p.session, "set presence", wrapped, events.SeverityError)
		return wrapped
	}

	p.mu.Lock()
	if p.state.IsPresent == isPresent {
		p.state.RemoteStatusID = statusID
	}
	p.mu.Unlock()

	entry.Outcome = domain.OutcomeApplied
	p.journal.Record(ctx, entry)
	publish(ctx, p.dispatcher, p.logger, events.NewEvent(events.EventPresenceChanged, p.session,
		events.PresenceChangedPayload{Present: isPresent, Remote: true}))
	return nil
}

// ForceAbsent marks the user absent locally without a tracker write.
func (p *PresenceService) ForceAbsent(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = domain.PresenceState{IsPresent: false, RemoteStatusID: p.state.RemoteStatusID}
	p.persistLocked(ctx, domain.KeyUserStatus, p.state.UserStatus())
}

func (p *PresenceService) load(ctx context.Context, key string) (string, bool) {
	if p.store == nil {
		return "", false
	}
	v, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("session store read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok && v != ""
}

func (p *PresenceService) persistLocked(ctx context.Context, key, value string) {
	if p.store == nil {
		return
	}
	if err := p.store.Set(ctx, key, value); err != nil {
		p.logger.Warn("session store write failed", zap.String("key", key), zap.Error(err))
	}
}
