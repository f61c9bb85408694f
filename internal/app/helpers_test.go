package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"daily-challenge-service/internal/app"
	"daily-challenge-service/internal/domain"
	"daily-challenge-service/internal/infra/memory"
	"daily-challenge-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var kolkata = mustLocation("Asia/Kolkata")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	service  *app.ChallengeService
	clock    *clock
	attempts *memory.AttemptStore
	ledger   *flakyLedger
	ranking  *memory.RankingBoard
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	loader, err := memory.NewStaticChallengeLoader(testChallenges())
	require.NoError(t, err)

	f := &fixture{
		clock:    &clock{now: start},
		attempts: memory.NewAttemptStore(),
		ledger:   &flakyLedger{Ledger: memory.NewLedger()},
		ranking:  memory.NewRankingBoard(),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.service = app.NewChallengeService(
		memory.NewCatalog(loader, time.Minute),
		f.attempts,
		f.ledger,
		f.ranking,
		app.WithClock(f.clock.Now),
		app.WithCalendar(domain.CalendarIn(kolkata)),
		app.WithSelector(app.NewSelector(7)),
		app.WithMetrics(f.metrics),
	)
	return f
}

func (f *fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	amount, err := f.service.Balance(context.Background(), userID)
	require.NoError(t, err)
	return amount
}

// flakyLedger fails credits while failing is set and counts applied credits.
type flakyLedger struct {
	*memory.Ledger
	mu      sync.Mutex
	failing bool
	applied int
}

func (l *flakyLedger) SetFailing(v bool) {
	l.mu.Lock()
	l.failing = v
	l.mu.Unlock()
}

func (l *flakyLedger) Applied() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applied
}

func (l *flakyLedger) Credit(ctx context.Context, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error) {
	l.mu.Lock()
	failing := l.failing
	l.mu.Unlock()
	if failing {
		return false, errors.New("ledger unavailable")
	}
	applied, err := l.Ledger.Credit(ctx, userID, amount, key)
	if applied {
		l.mu.Lock()
		l.applied++
		l.mu.Unlock()
	}
	return applied, err
}

func testChallenges() map[string]domain.Challenge {
	return map[string]domain.Challenge{
		// three of four to win, five minutes
		"daily-1": {
			ID:              "daily-1",
			Title:           "Mixed bag",
			Reward:          decimal.RequireFromString("25.50"),
			RequiredCorrect: 3,
			TimeLimit:       300,
			Active:          true,
			Questions: []domain.Question{
				{ID: "q1", Text: "2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: "b"},
				{ID: "q2", Text: "Red planet?", Options: []string{"Venus", "Mars", "Jupiter"}, CorrectAnswer: "Mars"},
				{ID: "q3", Text: "Largest ocean?", Options: []string{"Atlantic", "Pacific"}, CorrectAnswer: "B"},
				{ID: "q4", Text: "Free text", Options: []string{"yes", "no"}, CorrectAnswer: "maybe"},
			},
		},
		// one correct answer wins, no time limit
		"easy": {
			ID:              "easy",
			Title:           "Easy",
			Reward:          decimal.NewFromInt(10),
			RequiredCorrect: 1,
			Active:          true,
			Questions: []domain.Question{
				{ID: "e1", Text: "1 + 1?", Options: []string{"2", "3"}, CorrectAnswer: "a"},
				{ID: "e2", Text: "3 + 3?", Options: []string{"5", "6"}, CorrectAnswer: "b"},
			},
		},
		// three of five to win
		"five": {
			ID:              "five",
			Title:           "Capitals",
			Reward:          decimal.NewFromInt(50),
			RequiredCorrect: 3,
			TimeLimit:       600,
			Active:          true,
			Questions: []domain.Question{
				{ID: "f1", Text: "Letter b", Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "b"},
				{ID: "f2", Text: "Capital of France?", Options: []string{"Paris", "London", "Berlin", "Madrid"}, CorrectAnswer: "Paris"},
				{ID: "f3", Text: "Capital of Germany?", Options: []string{"Paris", "London", "Berlin", "Madrid"}, CorrectAnswer: "c"},
				{ID: "f4", Text: "Capital of Spain?", Options: []string{"Paris", "London", "Berlin", "Madrid"}, CorrectAnswer: "Madrid"},
				{ID: "f5", Text: "Capital of the UK?", Options: []string{"Paris", "London", "Berlin", "Madrid"}, CorrectAnswer: "b"},
			},
		},
		"retired": {
			ID:     "retired",
			Title:  "Retired",
			Reward: decimal.NewFromInt(5),
			Active: false,
			Questions: []domain.Question{
				{ID: "r1", Text: "?", Options: []string{"x"}, CorrectAnswer: "a"},
			},
		},
	}
}

func index(i int) domain.Answer { return domain.Answer{Index: &i} }

func text(s string) domain.Answer { return domain.Answer{Text: &s} }

func answer(questionID string, a domain.Answer) domain.Answer {
	a.QuestionID = questionID
	return a
}

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
