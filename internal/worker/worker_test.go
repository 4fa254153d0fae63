package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/notify"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/service"
	"github.com/spec-kit/presence-desk/internal/tracker"
)

type stubTracker struct {
	mu           sync.Mutex
	billingCalls int
}

func (s *stubTracker) ListStatuses(context.Context, string) ([]tracker.Status, error) {
	return []tracker.Status{{ID: 10, Name: "在席"}, {ID: 20, Name: "処理中"}}, nil
}

func (s *stubTracker) ListIssues(_ context.Context, q tracker.IssueQuery) ([]tracker.Issue, error) {
	if q.ProjectIDs[0] == "staff" {
		return []tracker.Issue{{ID: 900, Status: &tracker.Status{ID: 11, Name: "不在"}}}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.billingCalls++
	return []tracker.Issue{{ID: 501, Description: "病院名: 中央病院"}}, nil
}

func (s *stubTracker) GetIssue(context.Context, string) (*tracker.Issue, error) {
	return &tracker.Issue{ID: 900, Status: &tracker.Status{ID: 11, Name: "不在"}}, nil
}

func (s *stubTracker) UpdateIssueStatus(context.Context, string, int64) error { return nil }

func (s *stubTracker) ListProjectUsers(context.Context, string) ([]tracker.User, error) {
	return []tracker.User{{ID: 42, UserID: "tanaka", Name: "田中", MailAddress: "tanaka@clinic.jp"}}, nil
}

func (s *stubTracker) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billingCalls
}

func newManager(t *testing.T, client tracker.Client, dispatcher events.Dispatcher) *service.DeskManager {
	t.Helper()
	settings := config.TrackerSettings{
		BaseURL: "https://tracker", APIKey: "r", AdminAPIKey: "a",
		StaffProjectID: "staff", BillingProjectID: "billing",
	}
	manager := service.NewDeskManager(service.DeskDependencies{
		Client:     client,
		Settings:   settings,
		Identity:   service.NewIdentityService(client, settings, zap.NewNop()),
		Stores:     persistence.NewMemoryStores(),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	t.Cleanup(manager.Close)
	return manager
}

func TestPollOnce_RefreshesPresentDesksOnly(t *testing.T) {
	stub := &stubTracker{}
	manager := newManager(t, stub, events.NewInMemoryDispatcher())
	absent, err := manager.Login(context.Background(), "tanaka")
	require.NoError(t, err)
	present, err := manager.Login(context.Background(), "tanaka")
	require.NoError(t, err)
	require.NoError(t, present.Presence.SetPresence(context.Background(), true, false))

	PollOnce(context.Background(), manager, zap.NewNop())

	assert.Equal(t, 1, stub.calls())
	assert.Len(t, present.Inbox.Tickets(), 1)
	assert.Empty(t, absent.Inbox.Tickets())
}

func TestStartInboxPoller_TicksUntilCancelled(t *testing.T) {
	stub := &stubTracker{}
	manager := newManager(t, stub, events.NewInMemoryDispatcher())
	desk, err := manager.Login(context.Background(), "tanaka")
	require.NoError(t, err)
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))

	ctx, cancel := context.WithCancel(context.Background())
	StartInboxPoller(ctx, manager, 5*time.Millisecond, zap.NewNop())
	require.Eventually(t, func() bool { return stub.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
}

func TestStartNotificationWorker_RegistersHandlers(t *testing.T) {
	stub := &stubTracker{}
	dispatcher := events.NewInMemoryDispatcher()
	manager := newManager(t, stub, dispatcher)
	StartNotificationWorker(service.NewNotificationService(dispatcher, manager, zap.NewNop()), zap.NewNop())
	StartNotificationWorker(nil, zap.NewNop())

	desk, err := manager.Login(context.Background(), "tanaka")
	require.NoError(t, err)
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))
	desk.Inbox.OnPush(context.Background(), domainPush("777"))

	toasts := desk.Sink.Board().Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.KindTicketArrived, toasts[0].Kind)
}

func domainPush(id string) domain.PushTicket {
	return domain.PushTicket{ID: domain.FlexibleID(id)}
}
