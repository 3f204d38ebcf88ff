package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyconnfig/qdq/internal/domain"
)

// QuestionRepo implements domain.QuestionRepository backed by PostgreSQL.
type QuestionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.QuestionRepository = (*QuestionRepo)(nil)

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func (r *QuestionRepo) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	const query = `
		SELECT id, type, title, content, options, answer, analysis, score, difficulty, attachments
		FROM questions
		WHERE id = $1`

	var (
		q     domain.Question
		qType int
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID,
		&qType,
		&q.Title,
		&q.Content,
		&q.Options,
		&q.Answer,
		&q.Analysis,
		&q.Score,
		&q.Difficulty,
		&q.Attachments,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	q.Type = domain.QuestionType(qType)
	return &q, nil
}
