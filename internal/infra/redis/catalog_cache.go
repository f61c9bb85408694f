package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"daily-challenge-service/internal/domain"
	"daily-challenge-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogCache caches challenge definitions in Redis and falls back to a loader on cache miss.
// Challenges are stored as JSON: SET challenge:{challengeID} {json} EX ttl
type CatalogCache struct {
	client *redis.Client
	loader memory.ChallengeLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader memory.ChallengeLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) GetChallenge(ctx context.Context, challengeID string) (domain.Challenge, error) {
	if challenge, ok := c.cached(ctx, challengeID); ok {
		return challenge, nil
	}

	result, err, _ := c.sf.Do(challengeID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if challenge, ok := c.cached(ctx, challengeID); ok {
			return challenge, nil
		}

		challenge, err := c.loader.LoadChallenge(ctx, challengeID)
		if err != nil {
			return domain.Challenge{}, err
		}

		if data, err := json.Marshal(challenge); err == nil {
			_ = c.client.Set(ctx, c.key(challengeID), data, c.ttlWithJitter()).Err()
		}
		return challenge, nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return result.(domain.Challenge), nil
}

// ListActive is not cached so activation toggles show up immediately.
func (c *CatalogCache) ListActive(ctx context.Context) ([]domain.Challenge, error) {
	return c.loader.ListActive(ctx)
}

// Invalidate drops the cached copy of a challenge.
func (c *CatalogCache) Invalidate(ctx context.Context, challengeID string) error {
	return c.client.Del(ctx, c.key(challengeID)).Err()
}

// cached treats any Redis or decoding failure as a miss.
func (c *CatalogCache) cached(ctx context.Context, challengeID string) (domain.Challenge, bool) {
	data, err := c.client.Get(ctx, c.key(challengeID)).Bytes()
	if err != nil {
		return domain.Challenge{}, false
	}
	var challenge domain.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return domain.Challenge{}, false
	}
	// answer keys are not serialized
	if err := challenge.Prepare(); err != nil {
		return domain.Challenge{}, false
	}
	return challenge, true
}

func (c *CatalogCache) key(challengeID string) string {
	return "challenge:" + challengeID
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
