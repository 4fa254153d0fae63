package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/repository"
)

// Journal records desk transitions. A Journal without a repository records
// nothing, and recording failures are only logged.
type Journal struct {
	repo   repository.TransitionRepository
	logger *zap.Logger
}

// NewJournal builds a journal; repo may be nil.
func NewJournal(repo repository.TransitionRepository, logger *zap.Logger) *Journal {
	return &Journal{repo: repo, logger: logger}
}

// Record stores t, detached from ctx cancellation.
func (j *Journal) Record(ctx context.Context, t domain.Transition) {
	if j == nil || j.repo == nil {
		return
	}
	if err := j.repo.Create(context.WithoutCancel(ctx), &t); err != nil {
		j.logger.Warn("journal write failed",
			zap.String("kind", string(t.Kind)),
			zap.String("issue_id", t.IssueID),
			zap.Error(err))
	}
}

// Recent lists the latest entries for userID.
func (j *Journal) Recent(ctx context.Context, userID string, limit int) ([]domain.Transition, error) {
	if j == nil || j.repo == nil {
		return []domain.Transition{}, nil
	}
	items, err := j.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Transition{}
	}
	return items, nil
}
