package memory

import (
	"context"
	"sort"
	"sync"

	"daily-challenge-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[domain.AttemptKey]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[domain.AttemptKey]domain.Attempt),
	}
}

func (s *AttemptStore) Get(_ context.Context, key domain.AttemptKey) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[key]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attempt.Key()
	if _, ok := s.attempts[key]; ok {
		return domain.Attempt{}, domain.ErrAlreadyStarted
	}
	attempt = attempt.Clone()
	attempt.Version = 1
	s.attempts[key] = attempt
	return attempt.Clone(), nil
}

func (s *AttemptStore) Update(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attempt.Key()
	current, ok := s.attempts[key]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if current.Version != attempt.Version {
		return domain.Attempt{}, domain.ErrStaleAttempt
	}
	attempt = attempt.Clone()
	attempt.Version++
	s.attempts[key] = attempt
	return attempt.Clone(), nil
}

func (s *AttemptStore) ListPending(_ context.Context, day string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for key, attempt := range s.attempts {
		if key.Day == day && attempt.Pending() {
			out = append(out, attempt.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}
