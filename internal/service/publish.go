package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/events"
	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// publishFailure surfaces a failed operation to the user.
func publishFailure(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, session domain.UserSession, op string, err error, severity events.Severity) {
	payload := events.OperationFailedPayload{Operation: op, Message: err.Error(), Severity: severity}
	if domainErr := apperrors.ToDomainError(err); domainErr != nil {
		payload.Code = domainErr.Code
	}
	publish(ctx, dispatcher, logger, events.NewEvent(events.EventOperationFailed, session, payload))
}
