package postgres

import (
	"context"
	"errors"
	"fmt"

	"daily-challenge-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore keeps attempts in daily_challenge_attempts, one row per (challenge, user, day).
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

const attemptColumns = `challenge_id, user_id, day, correct_count, attempted_question_ids, completed, won,
	reason, started_at, expires_at, completed_at, settled_at, version`

func (s *AttemptStore) Get(ctx context.Context, key domain.AttemptKey) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM daily_challenge_attempts
		WHERE challenge_id=$1 AND user_id=$2 AND day=$3`, key.ChallengeID, key.UserID, key.Day)
	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	attempt = attempt.Clone()
	attempt.Version = 1
	if attempt.AttemptedQuestionIDs == nil {
		attempt.AttemptedQuestionIDs = []string{}
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO daily_challenge_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (challenge_id, user_id, day) DO NOTHING`,
		attempt.ChallengeID, attempt.UserID, attempt.Day, attempt.CorrectCount, attempt.AttemptedQuestionIDs,
		attempt.Completed, attempt.Won, string(attempt.Reason), attempt.StartedAt, attempt.ExpiresAt,
		attempt.CompletedAt, attempt.SettledAt, attempt.Version)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Attempt{}, domain.ErrAlreadyStarted
	}
	return attempt, nil
}

func (s *AttemptStore) Update(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	next := attempt.Clone()
	if next.AttemptedQuestionIDs == nil {
		next.AttemptedQuestionIDs = []string{}
	}
	tag, err := s.pool.Exec(ctx, `UPDATE daily_challenge_attempts SET
			correct_count=$4, attempted_question_ids=$5, completed=$6, won=$7, reason=$8,
			completed_at=$9, settled_at=$10, version=version+1
		WHERE challenge_id=$1 AND user_id=$2 AND day=$3 AND version=$11`,
		next.ChallengeID, next.UserID, next.Day, next.CorrectCount, next.AttemptedQuestionIDs,
		next.Completed, next.Won, string(next.Reason), next.CompletedAt, next.SettledAt, attempt.Version)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, attempt.Key()); err != nil {
			return domain.Attempt{}, err
		}
		return domain.Attempt{}, domain.ErrStaleAttempt
	}
	next.Version++
	return next, nil
}

func (s *AttemptStore) ListPending(ctx context.Context, day string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM daily_challenge_attempts
		WHERE day=$1 AND (NOT completed OR (won AND settled_at IS NULL))
		ORDER BY challenge_id, user_id`, day)
	if err != nil {
		return nil, fmt.Errorf("list pending attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		a      domain.Attempt
		reason string
	)
	err := row.Scan(&a.ChallengeID, &a.UserID, &a.Day, &a.CorrectCount, &a.AttemptedQuestionIDs,
		&a.Completed, &a.Won, &reason, &a.StartedAt, &a.ExpiresAt, &a.CompletedAt, &a.SettledAt, &a.Version)
	if err != nil {
		return domain.Attempt{}, err
	}
	a.Reason = domain.CompletionReason(reason)
	return a, nil
}
