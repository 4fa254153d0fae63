package persistence

import (
	"context"
	"sync"
)

// SessionStore is the session-scoped key/value shadow of desk state. Every key
// is a single last-write-wins cell.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SessionStores opens the store of one session.
type SessionStores interface {
	Open(sessionID string) SessionStore
}

// MemoryStores keeps every session in process memory.
type MemoryStores struct {
	mu       sync.Mutex
	sessions map[string]*memoryStore
}

// NewMemoryStores creates an empty in-memory store set.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{sessions: make(map[string]*memoryStore)}
}

// Open returns the store for sessionID, creating it when needed.
func (m *MemoryStores) Open(sessionID string) SessionStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.sessions[sessionID]
	if !ok {
		store = &memoryStore{values: make(map[string]string)}
		m.sessions[sessionID] = store
	}
	return store
}

type memoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}
