package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/api/dto"
	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/observability"
	"github.com/spec-kit/presence-desk/internal/push"
	"github.com/spec-kit/presence-desk/internal/relay"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// RelayHandler ingests webhooks and streams them to desks.
type RelayHandler struct {
	ctx       context.Context
	hub       *relay.Hub
	broker    relay.Broker
	keepalive time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewRelayHandler constructs handler. Streams end when ctx is done.
func NewRelayHandler(ctx context.Context, hub *relay.Hub, broker relay.Broker, keepalive time.Duration, logger *zap.Logger, metrics *observability.Metrics) *RelayHandler {
	if keepalive <= 0 {
		keepalive = 5 * time.Second
	}
	return &RelayHandler{ctx: ctx, hub: hub, broker: broker, keepalive: keepalive, logger: logger, metrics: metrics}
}

// Webhook POST|GET /webhook/new_ticket. JSON bodies are relayed as-is;
// form bodies and query strings become flat JSON objects.
func (h *RelayHandler) Webhook(c *fiber.Ctx) error {
	data, err := webhookPayload(c)
	if err != nil {
		return err
	}
	event := relay.NewWebhookEvent(data, c.IP(), c.Method())
	if err := h.broker.Publish(c.UserContext(), event); err != nil {
		return apperrors.NewInternalError(err)
	}
	h.logger.Info("webhook received",
		zap.String("event_id", event.EventID),
		zap.String("source_ip", event.SourceIP),
		zap.Bool("is_ticket", event.IsTicket))
	return c.JSON(dto.WebhookAck{Status: "success", EventID: event.EventID, IsTicket: event.IsTicket})
}

func webhookPayload(c *fiber.Ctx) (json.RawMessage, error) {
	if c.Method() == fiber.MethodGet {
		return marshalFlat(c.Queries())
	}
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
	body := c.Body()
	switch {
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		values := map[string]string{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			values[string(k)] = string(v)
		})
		return marshalFlat(values)
	case len(body) == 0:
		return marshalFlat(c.Queries())
	default:
		if !json.Valid(body) {
			return nil, apperrors.NewValidationError("webhook body must be JSON", nil)
		}
		return json.RawMessage(append([]byte(nil), body...)), nil
	}
}

func marshalFlat(values map[string]string) (json.RawMessage, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid webhook payload", nil)
	}
	return raw, nil
}

// Events GET /events streams webhook events.
func (h *RelayHandler) Events(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	client, replay := h.hub.Subscribe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(client.ID)
		if err := h.stream(w, client, replay); err != nil {
			h.logger.Debug("event stream closed", zap.String("client_id", client.ID), zap.Error(err))
		}
	})
	return nil
}

func (h *RelayHandler) stream(w *bufio.Writer, client *relay.Client, replay []domain.WebhookEvent) error {
	hello, _ := json.Marshal(fiber.Map{"client_id": client.ID, "message": "connected"})
	if err := writeFlush(w, push.Frame{ID: client.ID, Event: push.EventConnected, Data: string(hello)}); err != nil {
		return err
	}
	for _, event := range replay {
		if err := h.writeEvent(w, push.EventHistory, event); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return h.ctx.Err()
		case event := <-client.Events:
			if err := h.writeEvent(w, push.EventWebhook, event); err != nil {
				return err
			}
			h.metrics.RecordRelayEvent("streamed")
		case <-ticker.C:
			if _, err := w.WriteString(": keepalive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

func (h *RelayHandler) writeEvent(w *bufio.Writer, name string, event domain.WebhookEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writeFlush(w, push.Frame{ID: event.EventID, Event: name, Data: string(raw)})
}

func writeFlush(w *bufio.Writer, f push.Frame) error {
	if err := push.WriteFrame(w, f); err != nil {
		return err
	}
	return w.Flush()
}

// Stats GET /api/stats.
func (h *RelayHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.hub.Stats())
}
