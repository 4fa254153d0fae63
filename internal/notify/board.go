package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Toast is a transient on-screen message.
type Toast struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Flash is the visual alert shown when no audio tier delivered.
type Flash struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Board holds the live toasts and flashes of one session. Entries expire on
// their own after their lifetime.
type Board struct {
	mu            sync.Mutex
	toasts        []Toast
	flashes       []Flash
	toastLifetime time.Duration
	flashLifetime time.Duration
	now           func() time.Time
}

// NewBoard creates a board.
func NewBoard(toastLifetime, flashLifetime time.Duration) *Board {
	if toastLifetime <= 0 {
		toastLifetime = 5 * time.Second
	}
	if flashLifetime <= 0 {
		flashLifetime = 1500 * time.Millisecond
	}
	return &Board{
		toastLifetime: toastLifetime,
		flashLifetime: flashLifetime,
		now:           time.Now,
	}
}

// AddToast posts a toast.
func (b *Board) AddToast(kind Kind, title, message string) Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	t := Toast{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(b.toastLifetime),
	}
	b.pruneLocked(now)
	b.toasts = append(b.toasts, t)
	return t
}

// AddFlash posts a flash.
func (b *Board) AddFlash() Flash {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	f := Flash{ID: uuid.NewString(), CreatedAt: now, ExpiresAt: now.Add(b.flashLifetime)}
	b.pruneLocked(now)
	b.flashes = append(b.flashes, f)
	return f
}

// Toasts returns the live toasts, oldest first.
func (b *Board) Toasts() []Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(b.now())
	return append([]Toast(nil), b.toasts...)
}

// Flashes returns the live flashes.
func (b *Board) Flashes() []Flash {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(b.now())
	return append([]Flash(nil), b.flashes...)
}

// Reset drops everything.
func (b *Board) Reset() {
	b.mu.Lock()
	b.toasts = nil
	b.flashes = nil
	b.mu.Unlock()
}

func (b *Board) pruneLocked(now time.Time) {
	toasts := b.toasts[:0]
	for _, t := range b.toasts {
		if now.Before(t.ExpiresAt) {
			toasts = append(toasts, t)
		}
	}
	b.toasts = toasts

	flashes := b.flashes[:0]
	for _, f := range b.flashes {
		if now.Before(f.ExpiresAt) {
			flashes = append(flashes, f)
		}
	}
	b.flashes = flashes
}
