package redis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"daily-challenge-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// scoreScale is the number of decimal places kept in sorted-set scores. Scores are integer
// minor units so ZINCRBY never sums fractional floats.
const scoreScale = 4

// recordScript increments a user's score once per idempotency key.
// KEYS[1] ranking sorted set, KEYS[2] applied marker
// ARGV[1] amount in minor units, ARGV[2] user ID, ARGV[3] retention seconds
var recordScript = redis.NewScript(`
if redis.call('SET', KEYS[2], '1', 'NX', 'EX', ARGV[3]) then
	redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[3])
	return 1
end
return 0
`)

// RankingBoard keeps one sorted set per day: ZINCRBY ranking:{day} {minor units} {userID}
type RankingBoard struct {
	client    *redis.Client
	retention time.Duration
}

// NewRankingBoard keeps rankings and applied markers for retention (minimum one day).
func NewRankingBoard(client *redis.Client, retention time.Duration) *RankingBoard {
	if retention < 24*time.Hour {
		retention = 24 * time.Hour
	}
	return &RankingBoard{client: client, retention: retention}
}

func (b *RankingBoard) Record(ctx context.Context, day, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error) {
	keys := []string{b.rankingKey(day), "ranking:applied:" + key.String()}
	units := toUnits(amount)
	applied, err := recordScript.Run(ctx, b.client, keys, units, userID, int64(b.retention/time.Second)).Int()
	if err != nil {
		return false, fmt.Errorf("record ranking: %w", err)
	}
	return applied == 1, nil
}

// Top orders by amount desc, then user ID. The whole day is read so ties at the
// limit boundary resolve by user ID rather than by Redis member order.
func (b *RankingBoard) Top(ctx context.Context, day string, limit int) ([]domain.RankingEntry, error) {
	members, err := b.client.ZRevRangeWithScores(ctx, b.rankingKey(day), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	entries := make([]domain.RankingEntry, 0, len(members))
	for _, m := range members {
		userID, _ := m.Member.(string)
		entries = append(entries, domain.RankingEntry{
			UserID: userID,
			Amount: fromUnits(m.Score),
		})
	}
	// ZREVRANGE breaks ties by descending member; flip to ascending user ID.
	sort.SliceStable(entries, func(i, j int) bool {
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

func toUnits(amount decimal.Decimal) int64 {
	return amount.Shift(scoreScale).Round(0).IntPart()
}

func fromUnits(score float64) decimal.Decimal {
	return decimal.New(int64(math.Round(score)), -scoreScale)
}

func (b *RankingBoard) rankingKey(day string) string {
	return "ranking:" + day
}
