package service

import (
	"context"
	"sync"

	"github.com/spec-kit/presence-desk/internal/persistence"
)

// deskStore is the session store as seen by one desk. After seal, writes are
// dropped so work still finishing on a logged-out desk cannot repopulate the
// cleared session.
type deskStore struct {
	persistence.SessionStore

	mu     sync.RWMutex
	sealed bool
}

func newDeskStore(store persistence.SessionStore) *deskStore {
	return &deskStore{SessionStore: store}
}

func (s *deskStore) Set(ctx context.Context, key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed {
		return nil
	}
	return s.SessionStore.Set(ctx, key, value)
}

func (s *deskStore) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed {
		return nil
	}
	return s.SessionStore.Delete(ctx, key)
}

// seal blocks until in-flight writes finish.
func (s *deskStore) seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}
