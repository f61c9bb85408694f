package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is an in-memory balance store honoring idempotency keys.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	applied  map[uuid.UUID]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]decimal.Decimal),
		applied:  make(map[uuid.UUID]struct{}),
	}
}

func (l *Ledger) Credit(_ context.Context, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.applied[key]; ok {
		return false, nil
	}
	l.applied[key] = struct{}{}
	l.balances[userID] = l.balances[userID].Add(amount)
	return true, nil
}

func (l *Ledger) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}
