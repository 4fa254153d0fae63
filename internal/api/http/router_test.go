package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/api/http/handlers"
	"github.com/spec-kit/presence-desk/internal/auth"
	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/observability"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/relay"
	"github.com/spec-kit/presence-desk/internal/service"
	"github.com/spec-kit/presence-desk/internal/tracker"
)

type deskTracker struct {
	mu      sync.Mutex
	patches map[string]int64
}

func (d *deskTracker) ListStatuses(context.Context, string) ([]tracker.Status, error) {
	return []tracker.Status{
		{ID: 10, Name: "在席"}, {ID: 11, Name: "不在"},
		{ID: 20, Name: "処理中"}, {ID: 21, Name: "完了"}, {ID: 22, Name: "差戻"},
	}, nil
}

func (d *deskTracker) ListIssues(_ context.Context, q tracker.IssueQuery) ([]tracker.Issue, error) {
	if q.ProjectIDs[0] == "staff" {
		return []tracker.Issue{{ID: 900, Status: &tracker.Status{ID: 11, Name: "不在"}}}, nil
	}
	return []tracker.Issue{{ID: 501, Summary: "請求", Description: "病院名: 中央病院"}}, nil
}

func (d *deskTracker) GetIssue(context.Context, string) (*tracker.Issue, error) {
	return &tracker.Issue{ID: 900, Status: &tracker.Status{ID: 11, Name: "不在"}}, nil
}

func (d *deskTracker) UpdateIssueStatus(_ context.Context, issueID string, statusID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patches[issueID] = statusID
	return nil
}

func (d *deskTracker) ListProjectUsers(context.Context, string) ([]tracker.User, error) {
	return []tracker.User{{ID: 42, UserID: "tanaka", Name: "田中", MailAddress: "tanaka@clinic.jp"}}, nil
}

func newDeskApp(t *testing.T) (*fiber.App, *deskTracker) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("test")
	client := &deskTracker{patches: map[string]int64{}}
	settings := config.TrackerSettings{
		BaseURL: "https://tracker", APIKey: "r", AdminAPIKey: "a",
		StaffProjectID: "staff", BillingProjectID: "billing",
	}
	dispatcher := events.NewInMemoryDispatcher()
	desks := service.NewDeskManager(service.DeskDependencies{
		Client:     client,
		Settings:   settings,
		Identity:   service.NewIdentityService(client, settings, logger),
		Stores:     persistence.NewMemoryStores(),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	t.Cleanup(desks.Close)
	service.NewNotificationService(dispatcher, desks, logger).RegisterHandlers()

	tokens := auth.NewTokenManager("test-secret", 60)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterDeskRoutes(app, DeskRouteConfig{
		Health:         handlers.NewHealthHandler("desk", "test", nil),
		Session:        handlers.NewSessionHandler(desks, tokens),
		Presence:       handlers.NewPresenceHandler(),
		Tickets:        handlers.NewTicketsHandler(),
		Notifications:  handlers.NewNotificationsHandler(service.NewJournal(nil, logger)),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, desks),
		Metrics:        metrics,
	})
	return app, client
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestDeskRoutes_LoginPresenceAndTickets(t *testing.T) {
	app, client := newDeskApp(t)

	status, body := do(t, app, fiber.MethodPost, "/session", "", `{"login_id":"tanaka"}`)
	require.Equal(t, stdhttp.StatusCreated, status)
	data := body["data"].(map[string]any)
	token := data["token"].(string)
	assert.Equal(t, "42", data["user_id"])

	status, body = do(t, app, fiber.MethodGet, "/state", token, "")
	require.Equal(t, stdhttp.StatusOK, status)
	state := body["data"].(map[string]any)
	assert.Equal(t, "900", state["status_issue_id"])
	assert.Equal(t, false, state["present"])

	status, body = do(t, app, fiber.MethodPut, "/presence", token, `{"present":true}`)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["present"])
	assert.Equal(t, int64(10), client.patches["900"])

	status, body = do(t, app, fiber.MethodGet, "/tickets", token, "")
	require.Equal(t, stdhttp.StatusOK, status)
	tickets := body["data"].([]any)
	require.Len(t, tickets, 1)
	assert.Equal(t, "501", tickets[0].(map[string]any)["id"])

	status, body = do(t, app, fiber.MethodGet, "/notifications", token, "")
	require.Equal(t, stdhttp.StatusOK, status)
	assert.NotEmpty(t, body["data"].(map[string]any)["toasts"])

	status, _ = do(t, app, fiber.MethodDelete, "/session", token, "")
	assert.Equal(t, stdhttp.StatusNoContent, status)
}

func TestDeskRoutes_RejectsMissingToken(t *testing.T) {
	app, _ := newDeskApp(t)

	status, body := do(t, app, fiber.MethodGet, "/state", "", "")
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])
}

func TestDeskRoutes_ValidatesPresenceBody(t *testing.T) {
	app, _ := newDeskApp(t)
	_, body := do(t, app, fiber.MethodPost, "/session", "", `{"login_id":"tanaka"}`)
	token := body["data"].(map[string]any)["token"].(string)

	status, body := do(t, app, fiber.MethodPut, "/presence", token, `{}`)
	assert.Equal(t, stdhttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestDeskRoutes_UnknownRouteIsNotFound(t *testing.T) {
	app, _ := newDeskApp(t)

	status, body := do(t, app, fiber.MethodGet, "/nope", "", "")
	assert.Equal(t, stdhttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func newRelayApp(t *testing.T) (*fiber.App, *relay.Hub) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("test")
	hub := relay.NewHub(10, 5, 8, logger, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRelayRoutes(app, RelayRouteConfig{
		Health:  handlers.NewHealthHandler("relay", "test", nil),
		Relay:   handlers.NewRelayHandler(ctx, hub, relay.NewLocalBroker(hub), 0, logger, metrics),
		Metrics: metrics,
	})
	return app, hub
}

func TestRelayRoutes_IngestsJSONAndQueryWebhooks(t *testing.T) {
	app, hub := newRelayApp(t)

	status, body := do(t, app, fiber.MethodPost, "/webhook/new_ticket", "", `{"event_type":"processing_ticket","id":"501"}`)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["is_ticket"])

	status, body = do(t, app, fiber.MethodGet, "/webhook/new_ticket?event_type=comment&id=7", "", "")
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, false, body["is_ticket"])

	history := hub.History()
	require.Len(t, history, 2)
	assert.JSONEq(t, `{"event_type":"comment","id":"7"}`, string(history[1].Data))
	assert.Equal(t, "GET", history[1].Method)

	status, body = do(t, app, fiber.MethodGet, "/api/stats", "", "")
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, float64(2), body["events_in_history"])
}

func TestRelayRoutes_RejectsMalformedJSON(t *testing.T) {
	app, hub := newRelayApp(t)

	status, body := do(t, app, fiber.MethodPost, "/webhook/new_ticket", "", `{"event_type":`)
	assert.Equal(t, stdhttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
	assert.Empty(t, hub.History())
}

func TestRelayRoutes_ExposesMetrics(t *testing.T) {
	app, _ := newRelayApp(t)
	do(t, app, fiber.MethodGet, "/health/live", "", "")

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "test_http_requests_total")
}
