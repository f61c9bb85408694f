package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"daily-challenge-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ChallengeLoader fetches challenge definitions from a backing store (e.g., document DB).
// Returned challenges are already prepared (answer keys resolved).
type ChallengeLoader interface {
	LoadChallenge(ctx context.Context, challengeID string) (domain.Challenge, error)
	ListActive(ctx context.Context) ([]domain.Challenge, error)
}

// Catalog caches challenges with TTL to avoid repeated DB hits.
type Catalog struct {
	loader ChallengeLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedChallenge
}

type cachedChallenge struct {
	challenge domain.Challenge
	expiresAt time.Time
}

func NewCatalog(loader ChallengeLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedChallenge),
	}
}

func (c *Catalog) GetChallenge(ctx context.Context, challengeID string) (domain.Challenge, error) {
	if challenge, ok := c.cached(challengeID); ok {
		return challenge, nil
	}

	result, err, _ := c.sf.Do(challengeID, func() (interface{}, error) {
		if challenge, ok := c.cached(challengeID); ok {
			return challenge, nil
		}

		challenge, err := c.loader.LoadChallenge(ctx, challengeID)
		if err != nil {
			return domain.Challenge{}, err
		}

		c.mu.Lock()
		c.cache[challengeID] = cachedChallenge{
			challenge: challenge,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return challenge, nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return result.(domain.Challenge), nil
}

// ListActive always asks the loader; the listing is small and must reflect toggles promptly.
func (c *Catalog) ListActive(ctx context.Context) ([]domain.Challenge, error) {
	return c.loader.ListActive(ctx)
}

// Invalidate drops a cached challenge.
func (c *Catalog) Invalidate(challengeID string) {
	c.mu.Lock()
	delete(c.cache, challengeID)
	c.mu.Unlock()
}

func (c *Catalog) cached(challengeID string) (domain.Challenge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[challengeID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Challenge{}, false
	}
	return entry.challenge, true
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticChallengeLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticChallengeLoader struct {
	challenges map[string]domain.Challenge
}

// NewStaticChallengeLoader prepares every challenge up front and fails on the first one whose
// answers cannot be resolved.
func NewStaticChallengeLoader(challenges map[string]domain.Challenge) (*StaticChallengeLoader, error) {
	prepared := make(map[string]domain.Challenge, len(challenges))
	for id, challenge := range challenges {
		challenge.Questions = append([]domain.Question(nil), challenge.Questions...)
		if err := challenge.Prepare(); err != nil {
			return nil, err
		}
		prepared[id] = challenge
	}
	return &StaticChallengeLoader{challenges: prepared}, nil
}

func (l *StaticChallengeLoader) LoadChallenge(_ context.Context, challengeID string) (domain.Challenge, error) {
	if challenge, ok := l.challenges[challengeID]; ok {
		return challenge, nil
	}
	return domain.Challenge{}, domain.ErrChallengeNotFound
}

func (l *StaticChallengeLoader) ListActive(_ context.Context) ([]domain.Challenge, error) {
	out := make([]domain.Challenge, 0, len(l.challenges))
	for _, challenge := range l.challenges {
		if challenge.Active {
			out = append(out, challenge)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
