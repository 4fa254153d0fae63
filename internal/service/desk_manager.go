package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/notify"
	"github.com/spec-kit/presence-desk/internal/observability"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/tracker"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// TierFactory builds the notification tiers of one session.
type TierFactory func(board *notify.Board) []notify.Tier

// DeskDependencies bundles collaborators for the desk manager.
type DeskDependencies struct {
	Client     tracker.Client
	Settings   config.TrackerSettings
	Identity   *IdentityService
	Stores     persistence.SessionStores
	Dispatcher events.Dispatcher
	Journal    *Journal
	Tiers      TierFactory
	Config     config.DeskConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// DeskManager owns every open desk, keyed by session id.
type DeskManager struct {
	deps DeskDependencies

	mu    sync.RWMutex
	desks map[string]*Desk
}

// NewDeskManager creates the manager and subscribes the desk reactions to
// presence changes.
func NewDeskManager(deps DeskDependencies) *DeskManager {
	if deps.Tiers == nil {
		deps.Tiers = func(board *notify.Board) []notify.Tier {
			return []notify.Tier{notify.NewFlashTier(board)}
		}
	}
	if deps.Journal == nil {
		deps.Journal = NewJournal(nil, deps.Logger)
	}
	m := &DeskManager{deps: deps, desks: make(map[string]*Desk)}
	if deps.Dispatcher != nil {
		deps.Dispatcher.Subscribe(events.EventPresenceChanged, m.handlePresenceChanged)
	}
	return m
}

// Login resolves loginID to a tracker user and opens a desk for it.
func (m *DeskManager) Login(ctx context.Context, loginID string) (*Desk, error) {
	if err := m.deps.Settings.Validate(); err != nil {
		return nil, err
	}
	identity, err := m.deps.Identity.Resolve(ctx, loginID)
	if err != nil {
		return nil, err
	}

	session := domain.UserSession{
		SessionID: uuid.NewString(),
		UserID:    identity.UserID,
		UserName:  identity.UserName,
		StartedAt: time.Now().UTC(),
	}
	desk := m.build(session)
	if err := desk.store.Set(ctx, domain.KeyUserID, session.UserID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := desk.store.Set(ctx, domain.KeyUserName, session.UserName); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	m.add(desk)
	desk.initialize(ctx, false)
	desk.startChannel(m.deps.Config.EventsURL, m.deps.Config.ReconnectBackoff)
	m.deps.Logger.Info("desk opened", zap.String("session_id", session.SessionID), zap.String("user_id", session.UserID))
	return desk, nil
}

// Resume reopens a desk whose session survived in the session store.
func (m *DeskManager) Resume(ctx context.Context, sessionID string) (*Desk, error) {
	if desk, ok := m.Get(sessionID); ok {
		return desk, nil
	}
	store := m.deps.Stores.Open(sessionID)
	userID, ok, err := store.Get(ctx, domain.KeyUserID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !ok || userID == "" {
		return nil, apperrors.NewNotFound("session", map[string]any{"session_id": sessionID})
	}
	userName, _, _ := store.Get(ctx, domain.KeyUserName)
	statusIssueID, _, _ := store.Get(ctx, domain.KeyStatusIssueID)

	desk := m.build(domain.UserSession{
		SessionID:     sessionID,
		UserID:        userID,
		UserName:      userName,
		StatusIssueID: statusIssueID,
		StartedAt:     time.Now().UTC(),
	})
	if existing := m.add(desk); existing != desk {
		return existing, nil
	}
	desk.initialize(ctx, true)
	desk.startChannel(m.deps.Config.EventsURL, m.deps.Config.ReconnectBackoff)
	m.deps.Logger.Info("desk resumed", zap.String("session_id", sessionID), zap.String("user_id", userID))
	return desk, nil
}

// Get returns an open desk.
func (m *DeskManager) Get(sessionID string) (*Desk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	desk, ok := m.desks[sessionID]
	return desk, ok
}

// Sink returns the notification sink of an open desk.
func (m *DeskManager) Sink(sessionID string) (*notify.Sink, bool) {
	desk, ok := m.Get(sessionID)
	if !ok {
		return nil, false
	}
	return desk.Sink, true
}

// Each calls fn for every open desk.
func (m *DeskManager) Each(fn func(*Desk)) {
	m.mu.RLock()
	desks := make([]*Desk, 0, len(m.desks))
	for _, d := range m.desks {
		desks = append(desks, d)
	}
	m.mu.RUnlock()
	for _, d := range desks {
		fn(d)
	}
}

// Logout closes the desk and clears everything persisted for the session.
func (m *DeskManager) Logout(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	desk, ok := m.desks[sessionID]
	delete(m.desks, sessionID)
	count := len(m.desks)
	m.mu.Unlock()
	m.deps.Metrics.SetActiveDesks(count)

	if ok {
		desk.stop()
		desk.store.seal()
		desk.Sink.Board().Reset()
	}
	if err := m.deps.Stores.Open(sessionID).Clear(ctx); err != nil {
		return apperrors.NewInternalError(err)
	}
	m.deps.Logger.Info("desk closed", zap.String("session_id", sessionID))
	return nil
}

// Close stops every push connection. Persisted state is kept so sessions
// can be resumed.
func (m *DeskManager) Close() {
	m.Each(func(d *Desk) { d.stop() })
}

func (m *DeskManager) build(session domain.UserSession) *Desk {
	logger := m.deps.Logger.With(zap.String("session_id", session.SessionID))
	store := newDeskStore(m.deps.Stores.Open(session.SessionID))
	directory := NewStatusDirectory(m.deps.Client, m.deps.Settings.StatusIDs, logger.Named("statuses"))

	presence := NewPresenceService(session, PresenceDependencies{
		StaffProjectID: m.deps.Settings.StaffProjectID,
		Client:         m.deps.Client,
		Directory:      directory,
		Store:          store,
		Dispatcher:     m.deps.Dispatcher,
		Journal:        m.deps.Journal,
		Logger:         logger.Named("presence"),
	})
	inbox := NewInboxService(session, InboxDependencies{
		BillingProjectID: m.deps.Settings.BillingProjectID,
		Client:           m.deps.Client,
		Presence:         presence,
		Store:            store,
		Dispatcher:       m.deps.Dispatcher,
		Journal:          m.deps.Journal,
		Logger:           logger.Named("inbox"),
		SettleDelay:      m.deps.Config.SettleDelay,
	})
	board := notify.NewBoard(m.deps.Config.ToastLifetime, m.deps.Config.FlashLifetime)
	sink := notify.NewSink(m.deps.Tiers(board), board, store, logger.Named("notify"), m.deps.Metrics)

	return &Desk{
		Session:   session,
		Presence:  presence,
		Inbox:     inbox,
		Sink:      sink,
		Directory: directory,
		store:     store,
		logger:    logger,
	}
}

// add registers desk unless its session is already open, and returns the
// registered one.
func (m *DeskManager) add(desk *Desk) *Desk {
	m.mu.Lock()
	if existing, ok := m.desks[desk.Session.SessionID]; ok {
		m.mu.Unlock()
		return existing
	}
	m.desks[desk.Session.SessionID] = desk
	count := len(m.desks)
	m.mu.Unlock()
	m.deps.Metrics.SetActiveDesks(count)
	return desk
}

// handlePresenceChanged refreshes the inbox when the user became present and
// clears it when they left.
func (m *DeskManager) handlePresenceChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PresenceChangedPayload)
	if !ok || !payload.Remote {
		return nil
	}
	desk, ok := m.Get(event.SessionID)
	if !ok {
		return nil
	}
	if payload.Present {
		return desk.Inbox.Refresh(ctx)
	}
	desk.Inbox.Clear(ctx)
	return nil
}
