package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the shared
// dispatcher. Without it desk events are published but never reach a sink.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		logger.Warn("notification service not configured; desk events reach no sink")
		return
	}
	notifications.RegisterHandlers()
	logger.Debug("notification handlers registered")
}
