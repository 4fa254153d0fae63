package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/presence-desk/internal/domain"
)

// TransitionRepository stores desk journal entries.
type TransitionRepository interface {
	Create(ctx context.Context, t *domain.Transition) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transition, error)
}

type transitionRepository struct {
	pool *pgxpool.Pool
}

// NewTransitionRepository builds repository.
func NewTransitionRepository(pool *pgxpool.Pool) TransitionRepository {
	return &transitionRepository{pool: pool}
}

func (r *transitionRepository) Create(ctx context.Context, t *domain.Transition) error {
	const query = `
        INSERT INTO desk_transitions (session_id, user_id, issue_id, kind, status_id, outcome, detail)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	detail := t.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	var id int64
	if err := r.pool.QueryRow(ctx, query,
		t.SessionID,
		t.UserID,
		t.IssueID,
		t.Kind,
		t.StatusID,
		t.Outcome,
		detail,
	).Scan(&id, &t.CreatedAt); err != nil {
		return err
	}
	t.ID = strconv.FormatInt(id, 10)
	return nil
}

func (r *transitionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, session_id, user_id, issue_id, kind, status_id, outcome, detail, created_at
        FROM desk_transitions WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Transition
	for rows.Next() {
		var (
			t  domain.Transition
			id int64
		)
		if err := rows.Scan(
			&id,
			&t.SessionID,
			&t.UserID,
			&t.IssueID,
			&t.Kind,
			&t.StatusID,
			&t.Outcome,
			&t.Detail,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.ID = strconv.FormatInt(id, 10)
		result = append(result, t)
	}
	return result, rows.Err()
}
