package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyconnfig/qdq/internal/domain"
)

// BuzzLogRepo implements domain.BuzzLogRepository backed by PostgreSQL.
// Rows are append-only audit data; nothing in the hot path reads them.
type BuzzLogRepo struct {
	pool *pgxpool.Pool
}

var _ domain.BuzzLogRepository = (*BuzzLogRepo)(nil)

func NewBuzzLogRepo(pool *pgxpool.Pool) *BuzzLogRepo {
	return &BuzzLogRepo{pool: pool}
}

func (r *BuzzLogRepo) RecordBuzz(ctx context.Context, rec domain.BuzzRecord) error {
	const query = `
		INSERT INTO buzz_logs (session_id, question_id, member_id, server_time, rank, is_first)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		rec.SessionID,
		rec.QuestionID,
		rec.Participant.String(),
		rec.ServerTime,
		rec.Rank,
		rec.IsFirst,
	)
	if err != nil {
		return fmt.Errorf("failed to record buzz: %w", err)
	}
	return nil
}
