package tracker

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/observability"
)

// Client is the issue-tracker REST surface the desk consumes.
type Client interface {
	ListStatuses(ctx context.Context, projectID string) ([]Status, error)
	ListIssues(ctx context.Context, query IssueQuery) ([]Issue, error)
	GetIssue(ctx context.Context, issueID string) (*Issue, error)
	UpdateIssueStatus(ctx context.Context, issueID string, statusID int64) error
	ListProjectUsers(ctx context.Context, projectID string) ([]User, error)
}

type restClient struct {
	http        *resty.Client
	apiKey      string
	adminAPIKey string
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewClient builds a resty-backed tracker client. Writes are never retried.
func NewClient(settings config.TrackerSettings, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(settings.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &restClient{
		http:        httpClient,
		apiKey:      settings.APIKey,
		adminAPIKey: settings.AdminAPIKey,
		logger:      logger,
		metrics:     metrics,
	}
}

func (c *restClient) ListStatuses(ctx context.Context, projectID string) ([]Status, error) {
	var statuses []Status
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("projectId", projectID).
		SetQueryParam("apiKey", c.apiKey).
		SetResult(&statuses).
		Get("/projects/{projectId}/statuses")
	if err := c.check("list_statuses", resp, err); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (c *restClient) ListIssues(ctx context.Context, query IssueQuery) ([]Issue, error) {
	key := c.apiKey
	if query.Privileged {
		key = c.adminAPIKey
	}
	params := url.Values{"apiKey": {key}}
	if len(query.ProjectIDs) > 0 {
		params["projectId[]"] = query.ProjectIDs
	}
	if len(query.AssigneeIDs) > 0 {
		params["assigneeId[]"] = query.AssigneeIDs
	}
	for _, id := range query.StatusIDs {
		params["statusId[]"] = append(params["statusId[]"], strconv.FormatInt(id, 10))
	}
	if query.Sort != "" {
		params["sort"] = []string{query.Sort}
	}
	if query.Order != "" {
		params["order"] = []string{query.Order}
	}

	var issues []Issue
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&issues).
		Get("/issues")
	if err := c.check("list_issues", resp, err); err != nil {
		return nil, err
	}
	return issues, nil
}

func (c *restClient) GetIssue(ctx context.Context, issueID string) (*Issue, error) {
	var issue Issue
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("issueId", issueID).
		SetQueryParam("apiKey", c.apiKey).
		SetResult(&issue).
		Get("/issues/{issueId}")
	if err := c.check("get_issue", resp, err); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *restClient) UpdateIssueStatus(ctx context.Context, issueID string, statusID int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("issueId", issueID).
		SetQueryParam("apiKey", c.adminAPIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]int64{"statusId": statusID}).
		Patch("/issues/{issueId}")
	if err := c.check("update_issue_status", resp, err); err != nil {
		c.logger.Warn("tracker status update failed",
			zap.String("issue_id", issueID),
			zap.Int64("status_id", statusID),
			zap.Error(err))
		return err
	}
	c.logger.Debug("tracker status updated", zap.String("issue_id", issueID), zap.Int64("status_id", statusID))
	return nil
}

func (c *restClient) ListProjectUsers(ctx context.Context, projectID string) ([]User, error) {
	var users []User
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("projectId", projectID).
		SetQueryParam("apiKey", c.apiKey).
		SetResult(&users).
		Get("/projects/{projectId}/users")
	if err := c.check("list_project_users", resp, err); err != nil {
		return nil, err
	}
	return users, nil
}

// check converts transport errors and non-2xx responses, recording the outcome.
func (c *restClient) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.metrics.RecordTrackerCall(op, "transport_error")
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		c.metrics.RecordTrackerCall(op, strconv.Itoa(resp.StatusCode()))
		return &RemoteError{Op: op, StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	c.metrics.RecordTrackerCall(op, "ok")
	return nil
}
