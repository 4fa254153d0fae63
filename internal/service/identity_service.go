package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/tracker"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// Identity is the tracker user a login id resolved to.
type Identity struct {
	UserID   string
	UserName string
}

// IdentityService matches login ids against the project member lists.
type IdentityService struct {
	client   tracker.Client
	settings config.TrackerSettings
	logger   *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(client tracker.Client, settings config.TrackerSettings, logger *zap.Logger) *IdentityService {
	return &IdentityService{client: client, settings: settings, logger: logger}
}

// Resolve returns the first user whose mail address contains loginID,
// ignoring case. Users of every configured project are searched.
func (s *IdentityService) Resolve(ctx context.Context, loginID string) (Identity, error) {
	if err := s.settings.Validate(); err != nil {
		return Identity{}, err
	}
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return Identity{}, apperrors.NewValidationError("login id is required", nil)
	}

	users := s.members(ctx)
	needle := strings.ToLower(loginID)
	for _, u := range users {
		if u.MailAddress != "" && strings.Contains(strings.ToLower(u.MailAddress), needle) {
			return identityOf(u), nil
		}
	}
	for _, u := range users {
		if strings.EqualFold(u.UserID, loginID) {
			return identityOf(u), nil
		}
	}
	s.logger.Info("login id matched no user", zap.String("login_id", loginID), zap.Int("candidates", len(users)))
	return Identity{}, apperrors.NewNotFound("user", map[string]any{"login_id": loginID})
}

// members fetches every project's users concurrently and dedups them by id,
// keeping project order. A failed project contributes nothing.
func (s *IdentityService) members(ctx context.Context) []tracker.User {
	projects := s.settings.ProjectIDs()
	lists := make([][]tracker.User, len(projects))

	var wg sync.WaitGroup
	for i, projectID := range projects {
		wg.Add(1)
		go func(i int, projectID string) {
			defer wg.Done()
			users, err := s.client.ListProjectUsers(ctx, projectID)
			if err != nil {
				s.logger.Warn("project users fetch failed", zap.String("project_id", projectID), zap.Error(err))
				return
			}
			lists[i] = users
		}(i, projectID)
	}
	wg.Wait()

	seen := make(map[int64]struct{})
	var out []tracker.User
	for _, list := range lists {
		for _, u := range list {
			if _, dup := seen[u.ID]; dup {
				continue
			}
			seen[u.ID] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

func identityOf(u tracker.User) Identity {
	return Identity{UserID: strconv.FormatInt(u.ID, 10), UserName: u.Name}
}
