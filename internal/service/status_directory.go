package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/tracker"
)

// Tiers a status id can come from, in precedence order.
const (
	tierRemote      = "remote"
	tierConfigured  = "configured"
	tierPlaceholder = "placeholder"
)

// StatusDirectory resolves the tracker status ids the desk transitions into.
// A map resolved from the tracker is cached until Invalidate; a fallback map
// is rebuilt on every call so the next call retries the tracker.
type StatusDirectory struct {
	client     tracker.Client
	configured map[string]int64
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]domain.StatusIDMap
}

// NewStatusDirectory builds a directory. configured holds the injected
// status ids keyed by status key.
func NewStatusDirectory(client tracker.Client, configured map[string]int64, logger *zap.Logger) *StatusDirectory {
	return &StatusDirectory{
		client:     client,
		configured: configured,
		logger:     logger,
		cache:      make(map[string]domain.StatusIDMap),
	}
}

// Resolve returns a complete map for projectID. It never fails.
func (d *StatusDirectory) Resolve(ctx context.Context, projectID string) domain.StatusIDMap {
	d.mu.Lock()
	cached, ok := d.cache[projectID]
	d.mu.Unlock()
	if ok {
		return cached.Clone()
	}

	remote := domain.StatusIDMap{}
	fetched := false
	if projectID != "" {
		statuses, err := d.client.ListStatuses(ctx, projectID)
		if err != nil {
			d.logger.Warn("status lookup failed, using fallbacks", zap.String("project_id", projectID), zap.Error(err))
		} else {
			fetched = true
			for _, s := range statuses {
				key, known := domain.StatusNames[s.Name]
				if !known || s.ID <= 0 {
					continue
				}
				if _, dup := remote[key]; !dup {
					remote[key] = s.ID
				}
			}
		}
	}

	resolved := make(domain.StatusIDMap, len(domain.StatusKeys))
	for _, key := range domain.StatusKeys {
		id, tier := d.pick(key, remote)
		resolved[key] = id
		d.logger.Debug("status id resolved",
			zap.String("project_id", projectID),
			zap.String("key", string(key)),
			zap.Int64("status_id", id),
			zap.String("tier", tier))
		if tier == tierPlaceholder {
			d.logger.Warn("status id falls back to placeholder", zap.String("key", string(key)), zap.Int64("status_id", id))
		}
	}

	if fetched {
		d.mu.Lock()
		d.cache[projectID] = resolved.Clone()
		d.mu.Unlock()
	}
	return resolved
}

func (d *StatusDirectory) pick(key domain.StatusKey, remote domain.StatusIDMap) (int64, string) {
	if id := remote.ID(key); id > 0 {
		return id, tierRemote
	}
	if id := d.configured[string(key)]; id > 0 {
		return id, tierConfigured
	}
	return domain.PlaceholderStatusIDs[key], tierPlaceholder
}

// Invalidate drops every cached map.
func (d *StatusDirectory) Invalidate() {
	d.mu.Lock()
	d.cache = make(map[string]domain.StatusIDMap)
	d.mu.Unlock()
}
