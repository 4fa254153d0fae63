package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-desk/internal/api/dto"
	"github.com/spec-kit/presence-desk/internal/auth"
	"github.com/spec-kit/presence-desk/internal/service"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// PresenceHandler exposes the desk state and the presence toggle.
type PresenceHandler struct{}

// NewPresenceHandler constructs handler.
func NewPresenceHandler() *PresenceHandler {
	return &PresenceHandler{}
}

// State GET /state.
func (h *PresenceHandler) State(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponse(desk.State(c.UserContext()))})
}

// SetPresence PUT /presence.
func (h *PresenceHandler) SetPresence(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	var req dto.PresenceRequest
	if err := c.BodyParser(&req); err != nil || req.Present == nil {
		return apperrors.NewValidationError("present required", nil)
	}
	if err := desk.Presence.SetPresence(c.UserContext(), *req.Present, true); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponse(desk.State(c.UserContext()))})
}

// Refresh POST /presence/refresh re-reads the presence issue.
func (h *PresenceHandler) Refresh(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	if _, ok := desk.Presence.ResolveIssueID(c.UserContext()); !ok {
		return apperrors.NewBindingUnresolved(desk.Session.UserID)
	}
	if err := desk.Presence.FetchCurrent(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponse(desk.State(c.UserContext()))})
}

func deskFrom(c *fiber.Ctx) (*service.Desk, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Desk == nil {
		return nil, apperrors.NewUnauthorized("session required")
	}
	return principal.Desk, nil
}

func stateResponse(s service.DeskState) dto.StateResponse {
	teams := s.Teams
	if teams == nil {
		teams = []string{}
	}
	return dto.StateResponse{
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		UserName:       s.UserName,
		StatusIssueID:  s.StatusIssueID,
		Present:        s.Present,
		RemoteStatusID: s.RemoteStatusID,
		Muted:          s.Muted,
		Teams:          teams,
		StatusIDs:      s.Statuses,
		Tickets:        dto.NewTicketResponses(s.Tickets),
	}
}
