package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"daily-challenge-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// ChallengeLoader loads challenge JSONB from Postgres. The active column overrides the
// document's own flag so challenges can be toggled without rewriting them.
type ChallengeLoader struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewChallengeLoader(pool *pgxpool.Pool, log *zap.Logger) *ChallengeLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChallengeLoader{pool: pool, log: log}
}

func (l *ChallengeLoader) LoadChallenge(ctx context.Context, challengeID string) (domain.Challenge, error) {
	var (
		raw    []byte
		active bool
	)
	err := l.pool.QueryRow(ctx, `SELECT data, active FROM daily_challenges WHERE id=$1`, challengeID).Scan(&raw, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Challenge{}, domain.ErrChallengeNotFound
		}
		return domain.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}
	return decodeChallenge(challengeID, raw, active)
}

func (l *ChallengeLoader) ListActive(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM daily_challenges WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var docs []storedChallenge
	for rows.Next() {
		var doc storedChallenge
		if err := rows.Scan(&doc.id, &doc.raw); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return decodeActive(docs, l.log), nil
}

type storedChallenge struct {
	id  string
	raw []byte
}

// decodeActive skips documents that fail to decode or prepare; one broken challenge
// must not hide the rest of the listing.
func decodeActive(docs []storedChallenge, log *zap.Logger) []domain.Challenge {
	out := make([]domain.Challenge, 0, len(docs))
	for _, doc := range docs {
		challenge, err := decodeChallenge(doc.id, doc.raw, true)
		if err != nil {
			log.Warn("skipping invalid challenge", zap.String("challenge_id", doc.id), zap.Error(err))
			continue
		}
		out = append(out, challenge)
	}
	return out
}

// SaveChallenge upserts a challenge document.
func (l *ChallengeLoader) SaveChallenge(ctx context.Context, challenge domain.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO daily_challenges (id, data, active, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, active=EXCLUDED.active, updated_at=now()`,
		challenge.ID, string(data), challenge.Active)
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func decodeChallenge(id string, raw []byte, active bool) (domain.Challenge, error) {
	var challenge domain.Challenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return domain.Challenge{}, fmt.Errorf("unmarshal challenge %s: %w", id, err)
	}
	challenge.ID = id
	challenge.Active = active
	if err := challenge.Prepare(); err != nil {
		return domain.Challenge{}, err
	}
	return challenge, nil
}
