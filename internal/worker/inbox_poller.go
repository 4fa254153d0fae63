package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/service"
)

// StartInboxPoller refreshes the inbox of every present desk each interval
// until ctx is done. A non-positive interval disables polling.
func StartInboxPoller(ctx context.Context, desks *service.DeskManager, interval time.Duration, logger *zap.Logger) {
	if desks == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				PollOnce(ctx, desks, logger)
			}
		}
	}()
}

// PollOnce refreshes every present desk once.
func PollOnce(ctx context.Context, desks *service.DeskManager, logger *zap.Logger) {
	desks.Each(func(d *service.Desk) {
		if !d.Presence.IsPresent() {
			return
		}
		if err := d.Inbox.Refresh(ctx); err != nil {
			logger.Debug("poll refresh failed", zap.String("session_id", d.Session.SessionID), zap.Error(err))
		}
	})
}
