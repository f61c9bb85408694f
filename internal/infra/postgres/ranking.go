package postgres

import (
	"context"
	"fmt"

	"daily-challenge-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
)

// RankingBoard accumulates per-day totals in daily_rankings, journaling each increment in
// ranking_events.
type RankingBoard struct {
	pool *pgxpool.Pool
}

func NewRankingBoard(pool *pgxpool.Pool) *RankingBoard {
	return &RankingBoard{pool: pool}
}

func (b *RankingBoard) Record(ctx context.Context, day, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error) {
	applied := false
	err := b.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO ranking_events (idempotency_key, day, user_id, amount)
			VALUES ($1::uuid, $2, $3, $4::numeric) ON CONFLICT (idempotency_key) DO NOTHING`,
			key.String(), day, userID, amount.String())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `INSERT INTO daily_rankings (day, user_id, amount)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (day, user_id) DO UPDATE SET amount=daily_rankings.amount+EXCLUDED.amount`,
			day, userID, amount.String())
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record ranking: %w", err)
	}
	return applied, nil
}

func (b *RankingBoard) Top(ctx context.Context, day string, limit int) ([]domain.RankingEntry, error) {
	rows, err := b.pool.Query(ctx, `SELECT user_id, amount::text FROM daily_rankings
		WHERE day=$1 ORDER BY amount DESC, user_id ASC LIMIT $2`, day, limit)
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	defer rows.Close()

	entries := []domain.RankingEntry{}
	for rows.Next() {
		var userID, raw string
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse ranking amount: %w", err)
		}
		entries = append(entries, domain.RankingEntry{UserID: userID, Amount: amount})
	}
	return entries, rows.Err()
}
