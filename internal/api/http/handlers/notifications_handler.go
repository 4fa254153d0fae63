package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-desk/internal/api/dto"
	"github.com/spec-kit/presence-desk/internal/service"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// NotificationsHandler exposes toasts, the mute preference and the journal.
type NotificationsHandler struct {
	journal *service.Journal
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(journal *service.Journal) *NotificationsHandler {
	return &NotificationsHandler{journal: journal}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	board := desk.Sink.Board()
	return c.JSON(fiber.Map{"data": dto.NotificationsResponse{
		Toasts:  nonNil(board.Toasts()),
		Flashes: nonNil(board.Flashes()),
		Muted:   desk.Sink.Muted(),
	}})
}

// SetMuted PUT /mute.
func (h *NotificationsHandler) SetMuted(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	var req dto.MuteRequest
	if err := c.BodyParser(&req); err != nil || req.Muted == nil {
		return apperrors.NewValidationError("muted required", nil)
	}
	if err := desk.Sink.SetMuted(c.UserContext(), *req.Muted); err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"muted": desk.Sink.Muted()}})
}

// Journal GET /journal.
func (h *NotificationsHandler) Journal(c *fiber.Ctx) error {
	desk, err := deskFrom(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := h.journal.Recent(c.UserContext(), desk.Session.UserID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransitionResponses(items)})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
