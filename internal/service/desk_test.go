package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/notify"
	"github.com/spec-kit/presence-desk/internal/tracker"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

func ticketEvent(t *testing.T, data string) domain.WebhookEvent {
	t.Helper()
	require.True(t, json.Valid([]byte(data)))
	return domain.WebhookEvent{EventID: "ev-1", Data: json.RawMessage(data), IsTicket: true}
}

func TestLogin_BindsPresenceIssueAndSeedsState(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)

	assert.Equal(t, "42", desk.Session.UserID)
	assert.Equal(t, "田中", desk.Session.UserName)
	assert.Equal(t, "900", desk.Presence.Binding())
	assert.False(t, desk.Presence.IsPresent())
	assert.Equal(t, int64(11), desk.Presence.State().RemoteStatusID)
	assert.Equal(t, []string{"受付"}, desk.Presence.Teams())
	assert.Empty(t, h.tracker.patchCalls(), "seeding must not write")

	store := h.stores.Open(desk.Session.SessionID)
	v, _, _ := store.Get(context.Background(), domain.KeyStatusIssueID)
	assert.Equal(t, "900", v)
	v, _, _ = store.Get(context.Background(), domain.KeyUserStatus)
	assert.Equal(t, domain.UserStatusAbsent, v)
}

func TestLogin_RejectsMissingConfiguration(t *testing.T) {
	settings := testSettings()
	settings.AdminAPIKey = ""
	h := newHarnessWith(t, newFakeTracker(), settings, nil)

	_, err := h.manager.Login(context.Background(), "tanaka")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigurationMissing))
}

// Scenario A.
func TestSetPresence_WritesOnceThenRefreshes(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	h.tracker.setBilling(billingIssue(501, "病院名: 中央病院\n患者ID: P-1"))

	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, true))

	assert.Equal(t, []patchCall{{IssueID: "900", StatusID: 10}}, h.tracker.patchCalls())
	tickets := desk.Inbox.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, "501", tickets[0].ID)
	assert.Equal(t, "中央病院", tickets[0].Fields.HospitalName)
	assert.Len(t, toastsOf(desk, notify.KindStatusChanged), 1)
}

func TestSetPresence_AbsentClearsInbox(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	h.tracker.setBilling(billingIssue(501, ""))
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, true))
	require.Len(t, desk.Inbox.Tickets(), 1)

	require.NoError(t, desk.Presence.SetPresence(context.Background(), false, true))

	assert.Empty(t, desk.Inbox.Tickets())
	assert.Equal(t, patchCall{IssueID: "900", StatusID: 11}, h.tracker.patchCalls()[1])
}

func TestSetPresence_WriteFailureKeepsLocalState(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	h.tracker.failPatch = func(string, int64) error { return errTrackerDown }

	err := desk.Presence.SetPresence(context.Background(), true, true)

	assert.True(t, apperrors.IsCode(err, apperrors.CodeRemoteWrite))
	assert.True(t, desk.Presence.IsPresent())
	v, _, _ := h.stores.Open(desk.Session.SessionID).Get(context.Background(), domain.KeyUserStatus)
	assert.Equal(t, domain.UserStatusPresent, v)
	assert.Len(t, toastsOf(desk, notify.KindError), 1)
	assert.Equal(t, 0, h.tracker.billingCalls)
}

func TestSetPresence_UnboundRetriesResolutionOnce(t *testing.T) {
	h := newHarness(t)
	staff := h.tracker.staffIssues
	h.tracker.staffIssues = nil
	desk := h.login(t)
	require.Empty(t, desk.Presence.Binding())

	h.tracker.staffIssues = staff
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, true))

	assert.Equal(t, "900", desk.Presence.Binding())
	assert.True(t, desk.Presence.IsPresent(), "late binding must not reseed the toggled state")
	assert.Equal(t, []patchCall{{IssueID: "900", StatusID: 10}}, h.tracker.patchCalls())
}

func TestSetPresence_StillUnboundWarns(t *testing.T) {
	h := newHarness(t)
	h.tracker.staffIssues = nil
	desk := h.login(t)

	err := desk.Presence.SetPresence(context.Background(), true, true)

	assert.True(t, apperrors.IsCode(err, apperrors.CodeBindingUnresolved))
	assert.True(t, desk.Presence.IsPresent())
	assert.Empty(t, h.tracker.patchCalls())
	assert.Len(t, toastsOf(desk, notify.KindWarning), 1)
}

// Scenario B.
func TestWebhook_AssignedTicketArrives(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))

	desk.handleWebhook(context.Background(), ticketEvent(t, `{"id":501,"assigneeId":42,"description":"患者ID: P-9"}`))

	tickets := desk.Inbox.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, "P-9", tickets[0].Fields.PatientID)
	assert.Len(t, toastsOf(desk, notify.KindTicketArrived), 1)
	assert.Len(t, desk.Sink.Board().Flashes(), 1)
}

func TestWebhook_TicketWithoutIDArrives(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))

	desk.handleWebhook(context.Background(), ticketEvent(t, `{"assigneeId":42}`))

	tickets := desk.Inbox.Tickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, "ev-1", tickets[0].ID)
	assert.True(t, tickets[0].Local)
	assert.Len(t, toastsOf(desk, notify.KindTicketArrived), 1)
}

// Scenario C.
func TestWebhook_OtherAssigneeIgnored(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))

	desk.handleWebhook(context.Background(), ticketEvent(t, `{"id":501,"assigneeId":99}`))

	assert.Empty(t, desk.Inbox.Tickets())
	assert.Empty(t, desk.Sink.Board().Toasts())
}

func TestWebhook_DroppedWhileAbsentOrNotTicket(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)

	desk.handleWebhook(context.Background(), ticketEvent(t, `{"id":501}`))
	assert.Empty(t, desk.Inbox.Tickets())

	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))
	event := ticketEvent(t, `{"id":502}`)
	event.IsTicket = false
	desk.handleWebhook(context.Background(), event)
	assert.Empty(t, desk.Inbox.Tickets())

	desk.handleWebhook(context.Background(), ticketEvent(t, `{"id":503}`))
	assert.Len(t, desk.Inbox.Tickets(), 1)
}

func TestResume_RestoresPersistedSession(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	require.NoError(t, desk.Presence.SetPresence(context.Background(), true, false))
	desk.Inbox.OnPush(context.Background(), domain.PushTicket{ID: "501"})
	require.NoError(t, desk.Sink.SetMuted(context.Background(), true))

	// A second process sharing the session store; the tracker is unreachable.
	ft := newFakeTracker()
	ft.listErr = errTrackerDown
	ft.statusErr = errTrackerDown
	ft.staffIssues = nil
	other := newHarnessWith(t, ft, h.settings, h.stores)

	resumed, err := other.manager.Resume(context.Background(), desk.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "42", resumed.Session.UserID)
	assert.Equal(t, "900", resumed.Presence.Binding())
	assert.True(t, resumed.Presence.IsPresent())
	assert.True(t, resumed.Sink.Muted())
	require.Len(t, resumed.Inbox.Tickets(), 1)
	assert.Equal(t, "501", resumed.Inbox.Tickets()[0].ID)

	_, err = other.manager.Resume(context.Background(), "unknown")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestLogout_ClearsPersistedState(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)
	id := desk.Session.SessionID

	require.NoError(t, h.manager.Logout(context.Background(), id))

	_, ok := h.manager.Get(id)
	assert.False(t, ok)
	_, found, _ := h.stores.Open(id).Get(context.Background(), domain.KeyUserID)
	assert.False(t, found)
}

func TestLogout_ReturnInFlightDoesNotRepopulateSession(t *testing.T) {
	h := newHarness(t)
	h.tracker.setBilling(billingIssue(501, ""))
	desk := presentDesk(t, h)
	id := desk.Session.SessionID
	desk.Inbox.wait = func(ctx context.Context, _ time.Duration) error {
		return h.manager.Logout(ctx, id)
	}

	require.NoError(t, desk.Inbox.Return(context.Background(), "501"))

	store := h.stores.Open(id)
	_, found, _ := store.Get(context.Background(), domain.KeyUserStatus)
	assert.False(t, found)
	_, found, _ = store.Get(context.Background(), domain.KeyTickets)
	assert.False(t, found)
}

func TestFetchCurrent_OtherStatusReadsAsAbsent(t *testing.T) {
	h := newHarness(t)
	desk := presentDesk(t, h)
	require.True(t, desk.Presence.IsPresent())
	h.tracker.mu.Lock()
	h.tracker.staffIssues[0].Status = &tracker.Status{ID: 99, Name: "保留"}
	h.tracker.mu.Unlock()

	require.NoError(t, desk.Presence.FetchCurrent(context.Background()))

	assert.False(t, desk.Presence.IsPresent())
	assert.Equal(t, int64(99), desk.Presence.State().RemoteStatusID)
	v, _, _ := h.stores.Open(desk.Session.SessionID).Get(context.Background(), domain.KeyUserStatus)
	assert.Equal(t, domain.UserStatusAbsent, v)
}

func TestState_Snapshot(t *testing.T) {
	h := newHarness(t)
	desk := h.login(t)

	state := desk.State(context.Background())
	assert.Equal(t, "900", state.StatusIssueID)
	assert.Equal(t, int64(22), state.Statuses.ID(domain.StatusReturned))
	assert.NotNil(t, state.Tickets)
	assert.False(t, state.Muted)
}
