package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"daily-challenge-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// createScript indexes and stores a new attempt in one step; the index is written first so
// a failure never leaves a stored attempt missing from the pending set.
// KEYS[1] attempt, KEYS[2] pending set
// ARGV[1] document, ARGV[2] ttl in milliseconds (0 = none), ARGV[3] "1" when pending
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local ttl = tonumber(ARGV[2])
if ARGV[3] == '1' then
	redis.call('SADD', KEYS[2], KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[2], ttl)
	end
end
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// AttemptStore persists attempts as JSON documents and keeps a per-day set of pending attempt
// keys so the sweeper does not need to scan.
//
//	SET   challenge:attempt:{challengeID}:{userID}:{day} {json}
//	SADD  challenge:attempts:pending:{day} challenge:attempt:{...}
//
// Update is a WATCH/MULTI compare-and-swap on the attempt's version.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAttemptStore keeps attempts for ttl; zero keeps them forever.
func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) Get(ctx context.Context, key domain.AttemptKey) (domain.Attempt, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if isMiss(err) {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return decodeAttempt(data)
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	attempt = attempt.Clone()
	attempt.Version = 1
	data, err := json.Marshal(attempt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("encode attempt: %w", err)
	}

	key := s.key(attempt.Key())
	pending := "0"
	if attempt.Pending() {
		pending = "1"
	}
	keys := []string{key, s.pendingKey(attempt.Day)}
	created, err := createScript.Run(ctx, s.client, keys, data, s.ttl.Milliseconds(), pending).Int()
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	if created == 0 {
		return domain.Attempt{}, domain.ErrAlreadyStarted
	}
	return attempt, nil
}

func (s *AttemptStore) Update(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	key := s.key(attempt.Key())
	var updated domain.Attempt

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if isMiss(err) {
				return domain.ErrAttemptNotFound
			}
			return err
		}
		current, err := decodeAttempt(data)
		if err != nil {
			return err
		}
		if current.Version != attempt.Version {
			return domain.ErrStaleAttempt
		}

		next := attempt.Clone()
		next.Version++
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode attempt: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, redis.KeepTTL)
			if next.Pending() {
				pipe.SAdd(ctx, s.pendingKey(next.Day), key)
			} else {
				pipe.SRem(ctx, s.pendingKey(next.Day), key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}

	err := s.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.Attempt{}, domain.ErrStaleAttempt
	case errors.Is(err, domain.ErrAttemptNotFound), errors.Is(err, domain.ErrStaleAttempt):
		return domain.Attempt{}, err
	default:
		return domain.Attempt{}, fmt.Errorf("update attempt: %w", err)
	}
}

// ListPending returns the day's open or unsettled attempts ordered by key. Index entries whose
// document expired or is no longer pending are pruned.
func (s *AttemptStore) ListPending(ctx context.Context, day string) ([]domain.Attempt, error) {
	setKey := s.pendingKey(day)
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending attempts: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load pending attempts: %w", err)
	}

	var (
		out   []domain.Attempt
		stale []interface{}
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		attempt, err := decodeAttempt([]byte(raw))
		if err != nil {
			return nil, err
		}
		if !attempt.Pending() {
			stale = append(stale, keys[i])
			continue
		}
		out = append(out, attempt)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, setKey, stale...).Err()
	}
	return out, nil
}

func (s *AttemptStore) key(key domain.AttemptKey) string {
	return "challenge:attempt:" + key.ChallengeID + ":" + key.UserID + ":" + key.Day
}

func (s *AttemptStore) pendingKey(day string) string {
	return "challenge:attempts:pending:" + day
}

func decodeAttempt(data []byte) (domain.Attempt, error) {
	var attempt domain.Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	return attempt, nil
}
