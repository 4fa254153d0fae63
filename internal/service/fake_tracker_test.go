package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/notify"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/tracker"
)

const (
	staffProject   = "601236"
	billingProject = "601233"
)

type patchCall struct {
	IssueID  string
	StatusID int64
}

type fakeTracker struct {
	mu            sync.Mutex
	statuses      []tracker.Status
	statusErr     error
	statusCalls   int
	staffIssues   []tracker.Issue
	billingIssues []tracker.Issue
	listErr       error
	billingCalls  int
	onBillingList func(call int)
	users         map[string][]tracker.User
	usersErr      map[string]error
	failPatch     func(issueID string, statusID int64) error
	patches       []patchCall
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		statuses: []tracker.Status{
			{ID: 10, Name: "在席"},
			{ID: 11, Name: "不在"},
			{ID: 20, Name: "処理中"},
			{ID: 21, Name: "完了"},
			{ID: 22, Name: "差戻"},
			{ID: 99, Name: "保留"},
		},
		staffIssues: []tracker.Issue{{
			ID:       900,
			Summary:  "田中 在席状況",
			Status:   &tracker.Status{ID: 11, Name: "不在"},
			Category: []tracker.Category{{ID: 1, Name: "受付"}},
			Assignee: &tracker.User{ID: 42},
		}},
		users: map[string][]tracker.User{
			staffProject: {{ID: 42, UserID: "tanaka", Name: "田中", MailAddress: "Tanaka.Y@clinic.jp"}},
		},
		usersErr: map[string]error{},
	}
}

func (f *fakeTracker) ListStatuses(_ context.Context, _ string) ([]tracker.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return append([]tracker.Status{}, f.statuses...), nil
}

func (f *fakeTracker) ListIssues(_ context.Context, q tracker.IssueQuery) ([]tracker.Issue, error) {
	f.mu.Lock()
	if f.listErr != nil {
		err := f.listErr
		f.mu.Unlock()
		return nil, err
	}
	if len(q.ProjectIDs) > 0 && q.ProjectIDs[0] == staffProject {
		out := append([]tracker.Issue{}, f.staffIssues...)
		f.mu.Unlock()
		return out, nil
	}
	f.billingCalls++
	call := f.billingCalls
	out := append([]tracker.Issue{}, f.billingIssues...)
	hook := f.onBillingList
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return out, nil
}

func (f *fakeTracker) GetIssue(_ context.Context, issueID string) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := append(append([]tracker.Issue{}, f.staffIssues...), f.billingIssues...)
	for _, issue := range all {
		if issue.IDString() == issueID {
			copied := issue
			return &copied, nil
		}
	}
	return nil, &tracker.RemoteError{Op: "get_issue", StatusCode: 404}
}

func (f *fakeTracker) UpdateIssueStatus(_ context.Context, issueID string, statusID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchCall{IssueID: issueID, StatusID: statusID})
	if f.failPatch != nil {
		return f.failPatch(issueID, statusID)
	}
	return nil
}

func (f *fakeTracker) ListProjectUsers(_ context.Context, projectID string) ([]tracker.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usersErr[projectID]; err != nil {
		return nil, err
	}
	return f.users[projectID], nil
}

func (f *fakeTracker) setBilling(issues ...tracker.Issue) {
	f.mu.Lock()
	f.billingIssues = issues
	f.mu.Unlock()
}

func (f *fakeTracker) resetPatches() {
	f.mu.Lock()
	f.patches = nil
	f.mu.Unlock()
}

func (f *fakeTracker) patchCalls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall{}, f.patches...)
}

func billingIssue(id int64, description string) tracker.Issue {
	return tracker.Issue{
		ID:          id,
		Summary:     "チケット",
		Description: description,
		Status:      &tracker.Status{ID: 20, Name: "処理中"},
		Assignee:    &tracker.User{ID: 42},
	}
}

var errTrackerDown = errors.New("tracker unavailable")

type harness struct {
	tracker  *fakeTracker
	stores   persistence.SessionStores
	manager  *DeskManager
	settings config.TrackerSettings
}

func testSettings() config.TrackerSettings {
	return config.TrackerSettings{
		BaseURL:          "https://clinic.example.com/api/v2",
		APIKey:           "read",
		AdminAPIKey:      "admin",
		StaffProjectID:   staffProject,
		BillingProjectID: billingProject,
		StatusIDs:        map[string]int64{},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ft := newFakeTracker()
	settings := testSettings()
	stores := persistence.NewMemoryStores()
	return newHarnessWith(t, ft, settings, stores)
}

func newHarnessWith(t *testing.T, ft *fakeTracker, settings config.TrackerSettings, stores persistence.SessionStores) *harness {
	t.Helper()
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher()
	manager := NewDeskManager(DeskDependencies{
		Client:     ft,
		Settings:   settings,
		Identity:   NewIdentityService(ft, settings, logger),
		Stores:     stores,
		Dispatcher: dispatcher,
		Config:     config.DeskConfig{},
		Logger:     logger,
	})
	NewNotificationService(dispatcher, manager, logger).RegisterHandlers()
	t.Cleanup(manager.Close)
	return &harness{tracker: ft, stores: stores, manager: manager, settings: settings}
}

func (h *harness) login(t *testing.T) *Desk {
	t.Helper()
	desk, err := h.manager.Login(context.Background(), "tanaka")
	require.NoError(t, err)
	return desk
}

func toastsOf(desk *Desk, kind notify.Kind) []notify.Toast {
	var out []notify.Toast
	for _, t := range desk.Sink.Board().Toasts() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}
