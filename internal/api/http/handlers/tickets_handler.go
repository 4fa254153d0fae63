package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-desk/internal/api/dto"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// TicketsHandler manages the inbox endpoints.
type TicketsHandler struct{}

// NewTicketsHandler constructs handler.
func NewTicketsHandler() *TicketsHandler {
	return &TicketsHandler{}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(desk.Inbox.Tickets())})
}

// Refresh POST /tickets/refresh.
func (h *TicketsHandler) Refresh(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	if err := desk.Inbox.Refresh(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(desk.Inbox.Tickets())})
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if id == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}
	if err := desk.Inbox.Complete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(desk.Inbox.Tickets())})
}

// Return POST /tickets/:id/return. Responds once the settle delay elapsed.
func (h *TicketsHandler) Return(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if id == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}
	if err := desk.Inbox.Return(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stateResponse(desk.State(c.UserContext()))})
}
