package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger credits user_balances. Every credit is journaled in balance_credits under its
// idempotency key in the same transaction, so a repeated key changes nothing.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error) {
	applied := false
	err := l.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO balance_credits (idempotency_key, user_id, amount)
			VALUES ($1::uuid, $2, $3::numeric) ON CONFLICT (idempotency_key) DO NOTHING`,
			key.String(), userID, amount.String())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `INSERT INTO user_balances (user_id, balance, updated_at)
			VALUES ($1, $2::numeric, now())
			ON CONFLICT (user_id) DO UPDATE SET balance=user_balances.balance+EXCLUDED.balance, updated_at=now()`,
			userID, amount.String())
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("credit balance: %w", err)
	}
	return applied, nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var raw string
	err := l.pool.QueryRow(ctx, `SELECT balance::text FROM user_balances WHERE user_id=$1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	return decimal.NewFromString(raw)
}
