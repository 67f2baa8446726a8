package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"learnlab-client/internal/domain"
)

// AttemptArchive keeps a local history of completed quiz attempts.
type AttemptArchive struct {
	pool *pgxpool.Pool
}

func NewAttemptArchive(pool *pgxpool.Pool) *AttemptArchive {
	return &AttemptArchive{pool: pool}
}

// RecordAttempt upserts a completed attempt with its responses.
func (a *AttemptArchive) RecordAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	responses, err := json.Marshal(rec.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (id, quiz_id, quiz_title, user_id, score, started_at, ended_at, responses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			score = EXCLUDED.score,
			ended_at = EXCLUDED.ended_at,
			responses = EXCLUDED.responses,
			archived_at = now()`,
		rec.Attempt.ID,
		rec.Attempt.QuizID,
		rec.QuizTitle,
		rec.Attempt.UserID,
		rec.Attempt.Score,
		nullableTime(rec.Attempt.StartTime),
		endTime(rec.Attempt),
		string(responses),
	)
	if err != nil {
		return fmt.Errorf("archive attempt %s: %w", rec.Attempt.ID, err)
	}
	return nil
}

// History returns the most recent archived attempts of a quiz, newest first.
func (a *AttemptArchive) History(ctx context.Context, quizID string, limit int) ([]domain.AttemptRecord, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, quiz_id, quiz_title, user_id, score, started_at, ended_at, responses
		FROM quiz_attempts
		WHERE quiz_id = $1
		ORDER BY archived_at DESC
		LIMIT $2`, quizID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptRecord
	for rows.Next() {
		var (
			rec       domain.AttemptRecord
			startedAt *time.Time
			endedAt   *time.Time
			raw       []byte
		)
		if err := rows.Scan(&rec.Attempt.ID, &rec.Attempt.QuizID, &rec.QuizTitle, &rec.Attempt.UserID,
			&rec.Attempt.Score, &startedAt, &endedAt, &raw); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if startedAt != nil {
			rec.Attempt.StartTime = domain.NewTimestamp(*startedAt)
		}
		if endedAt != nil {
			ts := domain.NewTimestamp(*endedAt)
			rec.Attempt.EndTime = &ts
		}
		rec.Attempt.Status = domain.AttemptCompleted
		if err := json.Unmarshal(raw, &rec.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableTime(ts domain.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

func endTime(attempt domain.QuizAttempt) *time.Time {
	if attempt.EndTime == nil {
		return nil
	}
	return nullableTime(*attempt.EndTime)
}
