package app

import (
	"math/rand"
	"sync"

	"daily-challenge-service/internal/domain"
)

// Selector picks questions uniformly at random. The random source is seedable so selection is
// reproducible in tests; *rand.Rand is not goroutine safe, hence the mutex.
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(seed int64) *Selector {
	return &Selector{rnd: rand.New(rand.NewSource(seed))}
}

// Pick returns a random question from bank for which skip is false.
func (s *Selector) Pick(bank []domain.Question, skip func(questionID string) bool) (domain.Question, bool) {
	available := make([]int, 0, len(bank))
	for i := range bank {
		if skip != nil && skip(bank[i].ID) {
			continue
		}
		available = append(available, i)
	}
	if len(available) == 0 {
		return domain.Question{}, false
	}

	s.mu.Lock()
	n := s.rnd.Intn(len(available))
	s.mu.Unlock()
	return bank[available[n]], true
}
