package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyconnfig/qdq/internal/domain"
)

// SessionRepo implements domain.SessionRepository backed by PostgreSQL.
type SessionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	const query = `
		SELECT id, name, status, current_question_index, question_ids, config, started_at, ended_at
		FROM sessions
		WHERE id = $1`

	var (
		s         domain.Session
		status    int
		configRaw []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&status,
		&s.CurrentIndex,
		&s.QuestionIDs,
		&configRaw,
		&s.StartedAt,
		&s.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.Status = domain.SessionStatus(status)
	if len(configRaw) > 0 {
		if err := json.Unmarshal(configRaw, &s.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session config: %w", err)
		}
	}
	return &s, nil
}

func (r *SessionRepo) SaveSessionState(ctx context.Context, s *domain.Session) error {
	const query = `
		UPDATE sessions
		SET status = $2, current_question_index = $3, started_at = $4, ended_at = $5, updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, s.ID, int(s.Status), s.CurrentIndex, s.StartedAt, s.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
