package tracker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	settings := config.TrackerSettings{BaseURL: srv.URL, APIKey: "read-key", AdminAPIKey: "admin-key"}
	return NewClient(settings, 2*time.Second, zap.NewNop(), nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/601236/statuses", r.URL.Path)
		assert.Equal(t, "read-key", r.URL.Query().Get("apiKey"))
		writeJSON(w, []Status{{ID: 10, Name: "在席"}, {ID: 11, Name: "不在"}})
	})

	statuses, err := client.ListStatuses(context.Background(), "601236")
	require.NoError(t, err)
	assert.Equal(t, []Status{{ID: 10, Name: "在席"}, {ID: 11, Name: "不在"}}, statuses)
}

func TestListIssues_EncodesArrayParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/issues", r.URL.Path)
		assert.Equal(t, "admin-key", q.Get("apiKey"))
		assert.Equal(t, []string{"601233"}, q["projectId[]"])
		assert.Equal(t, []string{"42"}, q["assigneeId[]"])
		assert.Equal(t, []string{"2"}, q["statusId[]"])
		assert.Equal(t, "created", q.Get("sort"))
		assert.Equal(t, "asc", q.Get("order"))
		writeJSON(w, []map[string]any{
			{"id": 1, "summary": "a", "description": "患者ID: 1", "status": map[string]any{"id": 2, "name": "処理中"}},
			{"id": 2, "summary": "b", "category": []map[string]any{{"id": 5, "name": "受付"}}},
		})
	})

	issues, err := client.ListIssues(context.Background(), IssueQuery{
		ProjectIDs:  []string{"601233"},
		AssigneeIDs: []string{"42"},
		StatusIDs:   []int64{2},
		Sort:        "created",
		Order:       "asc",
		Privileged:  true,
	})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "処理中", issues[0].StatusName())
	assert.Equal(t, "1", issues[0].Ticket().Fields.PatientID)
	assert.Equal(t, []string{"受付"}, issues[1].CategoryNames())
	assert.Equal(t, "", issues[1].StatusName())
}

func TestUpdateIssueStatus_SendsPatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/issues/900", r.URL.Path)
		assert.Equal(t, "admin-key", r.URL.Query().Get("apiKey"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"statusId":10}`, string(body))
		writeJSON(w, map[string]any{"id": 900})
	})

	require.NoError(t, client.UpdateIssueStatus(context.Background(), "900", 10))
}

func TestUpdateIssueStatus_NonSuccessCarriesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"No such status."}]}`))
	})

	err := client.UpdateIssueStatus(context.Background(), "900", 99)
	require.Error(t, err)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Contains(t, remote.Body, "No such status.")
}

func TestGetIssue_TransportError(t *testing.T) {
	settings := config.TrackerSettings{BaseURL: "http://127.0.0.1:1", APIKey: "k", AdminAPIKey: "k"}
	client := NewClient(settings, 500*time.Millisecond, zap.NewNop(), nil)

	_, err := client.GetIssue(context.Background(), "1")
	require.Error(t, err)
}

func TestListProjectUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/7/users", r.URL.Path)
		writeJSON(w, []User{{ID: 42, UserID: "tanaka", Name: "田中", MailAddress: "tanaka@clinic.jp"}})
	})

	users, err := client.ListProjectUsers(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(42), users[0].ID)
}
