package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-desk/internal/service"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// DeskLocator finds the desk a token belongs to.
type DeskLocator interface {
	Get(sessionID string) (*service.Desk, bool)
	Resume(ctx context.Context, sessionID string) (*service.Desk, error)
}

// Principal represents the authenticated desk session.
type Principal struct {
	SessionID string
	UserID    string
	Desk      *service.Desk
}

// AuthMiddleware validates bearer tokens and loads the desk.
type AuthMiddleware struct {
	tokens *TokenManager
	desks  DeskLocator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, desks DeskLocator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, desks: desks}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	desk, ok := m.desks.Get(claims.SessionID)
	if !ok {
		desk, err = m.desks.Resume(c.UserContext(), claims.SessionID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeNotFound) {
				return apperrors.NewUnauthorized("session ended")
			}
			return apperrors.MapError(err)
		}
	}
	if desk.Session.UserID != claims.UserID {
		return apperrors.NewUnauthorized("session does not belong to token")
	}

	c.Locals(principalKey, &Principal{SessionID: claims.SessionID, UserID: claims.UserID, Desk: desk})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
