package memory

import (
	"context"
	"sort"
	"sync"

	"daily-challenge-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RankingBoard keeps per-day reward totals in memory.
type RankingBoard struct {
	mu      sync.Mutex
	days    map[string]map[string]decimal.Decimal
	applied map[uuid.UUID]struct{}
}

func NewRankingBoard() *RankingBoard {
	return &RankingBoard{
		days:    make(map[string]map[string]decimal.Decimal),
		applied: make(map[uuid.UUID]struct{}),
	}
}

func (b *RankingBoard) Record(_ context.Context, day, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.applied[key]; ok {
		return false, nil
	}
	b.applied[key] = struct{}{}
	users, ok := b.days[day]
	if !ok {
		users = make(map[string]decimal.Decimal)
		b.days[day] = users
	}
	users[userID] = users[userID].Add(amount)
	return true, nil
}

// Top orders by amount desc, then user ID.
func (b *RankingBoard) Top(_ context.Context, day string, limit int) ([]domain.RankingEntry, error) {
	b.mu.Lock()
	entries := make([]domain.RankingEntry, 0, len(b.days[day]))
	for userID, amount := range b.days[day] {
		entries = append(entries, domain.RankingEntry{UserID: userID, Amount: amount})
	}
	b.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Amount.Cmp(entries[j].Amount); c != 0 {
			return c > 0
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
