package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-desk/internal/api/dto"
	"github.com/spec-kit/presence-desk/internal/auth"
	"github.com/spec-kit/presence-desk/internal/service"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// SessionHandler opens and closes desk sessions.
type SessionHandler struct {
	desks  *service.DeskManager
	tokens *auth.TokenManager
}

// NewSessionHandler constructs handler.
func NewSessionHandler(desks *service.DeskManager, tokens *auth.TokenManager) *SessionHandler {
	return &SessionHandler{desks: desks, tokens: tokens}
}

// Login POST /session.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.LoginID) == "" {
		return apperrors.NewValidationError("login_id required", nil)
	}

	desk, err := h.desks.Login(c.UserContext(), req.LoginID)
	if err != nil {
		return err
	}
	token, expiresAt, err := h.tokens.GenerateToken(desk.Session.SessionID, desk.Session.UserID, desk.Session.UserName)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: desk.Session.SessionID,
		UserID:    desk.Session.UserID,
		UserName:  desk.Session.UserName,
	}})
}

// Logout DELETE /session.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	if err := h.desks.Logout(c.UserContext(), principal.SessionID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
