package notify

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/observability"
	"github.com/spec-kit/presence-desk/internal/persistence"
)

// Kind classifies a notification.
type Kind string

const (
	KindTicketArrived Kind = "ticket-arrived"
	KindStatusChanged Kind = "status-changed"
	KindError         Kind = "error"
	KindInfo          Kind = "info"
	KindWarning       Kind = "warning"
)

// TierNone is reported when a notification produced a toast only.
const TierNone = "none"

// Sink delivers user-facing notifications for one session.
type Sink struct {
	mu      sync.RWMutex
	muted   bool
	tiers   []Tier
	board   *Board
	store   persistence.SessionStore
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSink builds a sink. A nil store keeps the mute preference in memory only.
func NewSink(tiers []Tier, board *Board, store persistence.SessionStore, logger *zap.Logger, metrics *observability.Metrics) *Sink {
	return &Sink{
		tiers:   tiers,
		board:   board,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Board exposes the toast board.
func (s *Sink) Board() *Board {
	return s.board
}

// Notify posts a toast and, for ticket arrivals, alerts through the first
// tier that delivers. It returns the tier name used.
func (s *Sink) Notify(ctx context.Context, kind Kind, title, message string) string {
	s.board.AddToast(kind, title, message)

	tier := TierNone
	if kind == KindTicketArrived {
		tier = s.alert(ctx)
	}
	s.metrics.RecordNotification(string(kind), tier)
	s.logger.Debug("notification delivered",
		zap.String("kind", string(kind)),
		zap.String("title", title),
		zap.String("tier", tier))
	return tier
}

func (s *Sink) alert(ctx context.Context) string {
	muted := s.Muted()
	for _, tier := range s.tiers {
		if muted && tier.Audible() {
			continue
		}
		if !tier.Available() {
			continue
		}
		if err := tier.Alert(ctx); err != nil {
			s.logger.Warn("notification tier failed", zap.String("tier", tier.Name()), zap.Error(err))
			continue
		}
		return tier.Name()
	}
	return TierNone
}

// Muted reports the mute preference.
func (s *Sink) Muted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

// Restore loads the persisted mute preference.
func (s *Sink) Restore(ctx context.Context) {
	if s.store == nil {
		return
	}
	v, ok, err := s.store.Get(ctx, domain.KeyMuted)
	if err != nil || !ok {
		return
	}
	muted, err := strconv.ParseBool(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// SetMuted stores the preference. Unmuting plays a test alert.
func (s *Sink) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Set(ctx, domain.KeyMuted, strconv.FormatBool(muted)); err != nil {
			return err
		}
	}
	if !muted {
		tier := s.alert(ctx)
		s.metrics.RecordNotification("unmute-test", tier)
	}
	return nil
}
