package relay

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/observability"
)

// Client is one connected event stream.
type Client struct {
	ID          string
	ConnectedAt time.Time
	Events      chan domain.WebhookEvent
}

// Stats summarizes the hub.
type Stats struct {
	ActiveClients   int       `json:"active_clients"`
	EventsInHistory int       `json:"events_in_history"`
	ServerTime      time.Time `json:"server_time"`
}

// Hub keeps a bounded event history and fans events out to clients. Slow
// clients miss events rather than stalling the hub.
type Hub struct {
	historySize  int
	replaySize   int
	clientBuffer int
	logger       *zap.Logger
	metrics      *observability.Metrics

	mu      sync.RWMutex
	history []domain.WebhookEvent
	clients map[string]*Client
}

// NewHub creates a hub.
func NewHub(historySize, replaySize, clientBuffer int, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if historySize <= 0 {
		historySize = 100
	}
	if replaySize < 0 {
		replaySize = 0
	}
	if clientBuffer <= 0 {
		clientBuffer = 64
	}
	return &Hub{
		historySize:  historySize,
		replaySize:   replaySize,
		clientBuffer: clientBuffer,
		logger:       logger,
		metrics:      metrics,
		clients:      make(map[string]*Client),
	}
}

// NewWebhookEvent wraps an ingested payload. The event is a ticket when the
// payload's event_type is one of the ticket event types.
func NewWebhookEvent(data json.RawMessage, sourceIP, method string) domain.WebhookEvent {
	var head struct {
		EventType string `json:"event_type"`
	}
	_ = json.Unmarshal(data, &head)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return domain.WebhookEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Data:      data,
		SourceIP:  sourceIP,
		Method:    strings.ToUpper(method),
		IsTicket:  domain.IsTicketEventType(head.EventType),
	}
}

// Publish records event and delivers it to every client.
func (h *Hub) Publish(event domain.WebhookEvent) {
	h.mu.Lock()
	h.history = append(h.history, event)
	if overflow := len(h.history) - h.historySize; overflow > 0 {
		h.history = append([]domain.WebhookEvent(nil), h.history[overflow:]...)
	}
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.metrics.RecordRelayEvent("webhook")
	for _, c := range clients {
		select {
		case c.Events <- event:
		default:
			h.metrics.RecordRelayEvent("dropped")
			h.logger.Warn("client too slow, event dropped", zap.String("client_id", c.ID), zap.String("event_id", event.EventID))
		}
	}
}

// Subscribe registers a client and returns it with the events to replay.
func (h *Hub) Subscribe() (*Client, []domain.WebhookEvent) {
	c := &Client{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now().UTC(),
		Events:      make(chan domain.WebhookEvent, h.clientBuffer),
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	start := len(h.history) - h.replaySize
	if start < 0 {
		start = 0
	}
	replay := append([]domain.WebhookEvent(nil), h.history[start:]...)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetRelayClients(count)
	h.logger.Info("client connected", zap.String("client_id", c.ID), zap.Int("clients", count))
	return c, replay
}

// Unsubscribe removes a client.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.SetRelayClients(count)
	h.logger.Info("client disconnected", zap.String("client_id", id), zap.Int("clients", count))
}

// History returns the retained events, oldest first.
func (h *Hub) History() []domain.WebhookEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]domain.WebhookEvent(nil), h.history...)
}

// Stats reports the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		ActiveClients:   len(h.clients),
		EventsInHistory: len(h.history),
		ServerTime:      time.Now().UTC(),
	}
}
