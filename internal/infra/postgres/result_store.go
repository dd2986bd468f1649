package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

// ResultStore persists graded results in Postgres. The full result document
// lives in a JSONB column; the columns used for ordering and lookups are
// broken out. The attempt_id unique constraint is what makes Create
// first-wins across instances.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Create(ctx context.Context, result domain.Result) (domain.Result, bool, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("marshal result: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO results (id, attempt_id, quiz_id, student_id, rank, submitted_at, data)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (attempt_id) DO NOTHING
	`, result.ID, result.AttemptID, result.QuizID, result.StudentID, result.SubmittedAt, raw)
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("insert result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.ByAttempt(ctx, result.AttemptID)
		if err != nil {
			return domain.Result{}, false, err
		}
		return existing, false, nil
	}
	return result, true, nil
}

func (s *ResultStore) ByAttempt(ctx context.Context, attemptID string) (domain.Result, error) {
	var (
		raw     []byte
		rankCol int
	)
	err := s.pool.QueryRow(ctx, `SELECT data, rank FROM results WHERE attempt_id=$1`, attemptID).Scan(&raw, &rankCol)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	return decodeResult(raw, rankCol)
}

func (s *ResultStore) ByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT data, rank FROM results WHERE quiz_id=$1`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func (s *ResultStore) ByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data, rank FROM results
		WHERE quiz_id=$1 AND student_id=$2
		ORDER BY submitted_at
	`, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load student results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// UpdateRanks rewrites the rank column for a quiz's result set inside one
// transaction. The advisory lock keyed on the quiz serializes concurrent
// recomputes for the same quiz across service instances.
func (s *ResultStore) UpdateRanks(ctx context.Context, quizID string, ranks map[string]int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rank update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, quizID); err != nil {
		return fmt.Errorf("lock quiz ranks: %w", err)
	}
	for id, newRank := range ranks {
		if _, err := tx.Exec(ctx, `UPDATE results SET rank=$1 WHERE id=$2 AND quiz_id=$3`, newRank, id, quizID); err != nil {
			return fmt.Errorf("update rank: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func collectResults(rows pgx.Rows) ([]domain.Result, error) {
	var out []domain.Result
	for rows.Next() {
		var (
			raw     []byte
			rankCol int
		)
		if err := rows.Scan(&raw, &rankCol); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result, err := decodeResult(raw, rankCol)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func decodeResult(raw []byte, rankCol int) (domain.Result, error) {
	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	// The rank column is authoritative; the JSON document predates recomputes.
	result.Rank = rankCol
	return result, nil
}
