package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/notify"
)

// SinkLookup finds the notification sink of a session.
type SinkLookup interface {
	Sink(sessionID string) (*notify.Sink, bool)
}

// NotificationService turns desk events into user notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	sinks      SinkLookup
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sinks SinkLookup, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		sinks:      sinks,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketArrived, n.handleTicketArrived)
	n.dispatcher.Subscribe(events.EventTicketCompleted, n.handleTicketCompleted)
	n.dispatcher.Subscribe(events.EventTicketReturned, n.handleTicketReturned)
	n.dispatcher.Subscribe(events.EventPresenceChanged, n.handlePresenceChanged)
	n.dispatcher.Subscribe(events.EventOperationFailed, n.handleOperationFailed)
}

func (n *NotificationService) handleTicketArrived(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketPayload)
	n.logger.Info("TicketArrived", zap.String("session_id", event.SessionID), zap.String("ticket_id", payload.Ticket.ID))
	n.deliver(ctx, event, notify.KindTicketArrived, "新しいチケットが割り当てられました", payload.Ticket.Title())
	return nil
}

func (n *NotificationService) handleTicketCompleted(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketPayload)
	n.logger.Info("TicketCompleted", zap.String("session_id", event.SessionID), zap.String("ticket_id", payload.Ticket.ID))
	n.deliver(ctx, event, notify.KindInfo, "チケットを完了しました", payload.Ticket.Title())
	return nil
}

func (n *NotificationService) handleTicketReturned(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketPayload)
	n.logger.Info("TicketReturned", zap.String("session_id", event.SessionID), zap.String("ticket_id", payload.Ticket.ID))
	n.deliver(ctx, event, notify.KindInfo, "チケットを差し戻しました", "ステータスを不在に変更しました")
	return nil
}

func (n *NotificationService) handlePresenceChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PresenceChangedPayload)
	if !ok || !payload.Remote {
		return nil
	}
	message := "不在に変更しました"
	if payload.Present {
		message = "在席に変更しました"
	}
	n.deliver(ctx, event, notify.KindStatusChanged, "ステータス更新", message)
	return nil
}

func (n *NotificationService) handleOperationFailed(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.OperationFailedPayload)
	n.logger.Warn("OperationFailed",
		zap.String("session_id", event.SessionID),
		zap.String("operation", payload.Operation),
		zap.String("code", payload.Code),
		zap.String("message", payload.Message))
	kind := notify.KindError
	if payload.Severity == events.SeverityWarning {
		kind = notify.KindWarning
	}
	n.deliver(ctx, event, kind, payload.Operation, payload.Message)
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event, kind notify.Kind, title, message string) {
	if n.sinks == nil {
		return
	}
	sink, ok := n.sinks.Sink(event.SessionID)
	if !ok {
		n.logger.Debug("notification for closed session dropped", zap.String("session_id", event.SessionID))
		return
	}
	sink.Notify(ctx, kind, title, message)
}
