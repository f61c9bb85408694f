package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"daily-challenge-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	attempt := domain.Attempt{ChallengeID: "daily-1", UserID: "u1", Day: "2024-05-01", StartedAt: time.Now()}

	created, err := store.Create(ctx, attempt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if _, err := store.Create(ctx, attempt); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}

	created.CorrectCount = 1
	updated, err := store.Update(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	// created still carries version 1 and must lose.
	if _, err := store.Update(ctx, created); !errors.Is(err, domain.ErrStaleAttempt) {
		t.Fatalf("expected stale attempt, got %v", err)
	}

	got, err := store.Get(ctx, attempt.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CorrectCount != 1 {
		t.Fatalf("expected stored correct count 1, got %d", got.CorrectCount)
	}
}

func TestAttemptStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	created, err := store.Create(ctx, domain.Attempt{ChallengeID: "c", UserID: "u", Day: "2024-05-01", AttemptedQuestionIDs: []string{}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created.AttemptedQuestionIDs = append(created.AttemptedQuestionIDs, "q1")

	got, _ := store.Get(ctx, created.Key())
	if len(got.AttemptedQuestionIDs) != 0 {
		t.Fatalf("stored attempt mutated through returned copy: %+v", got.AttemptedQuestionIDs)
	}
}

func TestAttemptStoreListPending(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	now := time.Now()

	open := domain.Attempt{ChallengeID: "c", UserID: "open", Day: "2024-05-01"}
	lost := domain.Attempt{ChallengeID: "c", UserID: "lost", Day: "2024-05-01", Completed: true}
	unsettled := domain.Attempt{ChallengeID: "c", UserID: "unsettled", Day: "2024-05-01", Completed: true, Won: true}
	settled := domain.Attempt{ChallengeID: "c", UserID: "settled", Day: "2024-05-01", Completed: true, Won: true, SettledAt: &now}
	otherDay := domain.Attempt{ChallengeID: "c", UserID: "open", Day: "2024-05-02"}
	for _, a := range []domain.Attempt{open, lost, unsettled, settled, otherDay} {
		if _, err := store.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	pending, err := store.ListPending(ctx, "2024-05-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 || pending[0].UserID != "open" || pending[1].UserID != "unsettled" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestLedgerCreditIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	key := uuid.New()

	applied, err := ledger.Credit(ctx, "u1", decimal.NewFromInt(25), key)
	if err != nil || !applied {
		t.Fatalf("expected first credit applied, got %v %v", applied, err)
	}
	applied, err = ledger.Credit(ctx, "u1", decimal.NewFromInt(25), key)
	if err != nil || applied {
		t.Fatalf("expected duplicate credit ignored, got %v %v", applied, err)
	}
	if _, err := ledger.Credit(ctx, "u1", decimal.NewFromInt(5), uuid.New()); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balance, _ := ledger.Balance(ctx, "u1")
	if !balance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected balance 30, got %s", balance)
	}
}

func TestRankingBoardAccumulatesAndOrders(t *testing.T) {
	ctx := context.Background()
	board := NewRankingBoard()
	day := "2024-05-01"

	record := func(user string, amount int64, key uuid.UUID) {
		t.Helper()
		if _, err := board.Record(ctx, day, user, decimal.NewFromInt(amount), key); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	dup := uuid.New()
	record("alice", 10, uuid.New())
	record("bob", 15, dup)
	record("bob", 15, dup)
	record("alice", 10, uuid.New())
	record("carol", 5, uuid.New())

	top, err := board.Top(ctx, day, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].UserID != "alice" || !top[0].Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected alice 20 first, got %+v", top[0])
	}
	if top[1].UserID != "bob" || !top[1].Amount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected bob 15 second, got %+v", top[1])
	}

	empty, _ := board.Top(ctx, "2024-05-02", 10)
	if len(empty) != 0 {
		t.Fatalf("expected empty ranking for other day, got %+v", empty)
	}
}
