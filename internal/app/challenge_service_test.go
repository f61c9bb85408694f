package app_test

import (
	"context"
	"testing"
	"time"

	"daily-challenge-service/internal/app"
	"daily-challenge-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morning() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, kolkata)
}

func TestListActiveOmitsInactive(t *testing.T) {
	f := newFixture(t, morning())

	listing, err := f.service.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, listing, 3)
	assert.Equal(t, "daily-1", listing[0].ID)
	assert.Equal(t, 4, listing[0].TotalQuestions)
	assert.Equal(t, "easy", listing[1].ID)
	assert.Equal(t, "five", listing[2].ID)
}

func TestStartOpensOneAttemptPerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())

	view, err := f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.True(t, view.Started)
	assert.Equal(t, "2024-05-01", view.Day)
	assert.Equal(t, 0, view.CorrectCount)
	assert.Empty(t, view.Attempted)
	require.NotNil(t, view.ExpiresAt)
	assert.True(t, view.ExpiresAt.Equal(time.Date(2024, 5, 1, 23, 59, 59, 999_000_000, kolkata)), "expiresAt %s", view.ExpiresAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AttemptsStarted))

	_, err = f.service.Start(ctx, "daily-1", "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	// another user and another challenge are independent
	_, err = f.service.Start(ctx, "daily-1", "u2")
	require.NoError(t, err)
	_, err = f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	view, err = f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", view.Day)
}

func TestStartRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())

	_, err := f.service.Start(ctx, "daily-1", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.service.Start(ctx, "missing", "u1")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = f.service.Start(ctx, "retired", "u1")
	assert.ErrorIs(t, err, domain.ErrChallengeInactive)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestDayBoundaryUsesReferenceTimezone(t *testing.T) {
	ctx := context.Background()
	// 23:50 in Kolkata is still 18:20 UTC on the same date; 00:10 the next local day is 18:40 UTC.
	f := newFixture(t, time.Date(2024, 5, 1, 23, 50, 0, 0, kolkata))

	view, err := f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", view.Day)

	f.clock.Advance(20 * time.Minute)
	status, err := f.service.Status(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.False(t, status.Started, "a new local day has no attempt yet")

	view, err = f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", view.Day)
}

func TestStatusBeforeStart(t *testing.T) {
	f := newFixture(t, morning())

	view, err := f.service.Status(context.Background(), "daily-1", "u1")
	require.NoError(t, err)
	assert.False(t, view.Started)
	assert.Equal(t, 300, view.TimeLimit)
	assert.Equal(t, 3, view.RequiredCorrect)
	assert.Equal(t, 4, view.TotalQuestions)
	assert.True(t, view.Reward.Equal(decimal.RequireFromString("25.5")))

	_, err = f.service.Status(context.Background(), "daily-1", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestNextQuestionSkipsAttemptedAndCompletesOnExhaustion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)

	_, err = f.service.SubmitAnswer(ctx, "easy", "u1", answer("e1", index(1)))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		next, err := f.service.NextQuestion(ctx, "easy", "u1")
		require.NoError(t, err)
		require.NotNil(t, next.Question)
		assert.Equal(t, "e2", next.Question.ID)
	}

	_, err = f.service.SubmitAnswer(ctx, "easy", "u1", answer("e2", index(0)))
	require.NoError(t, err)

	status, err := f.service.Status(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.False(t, status.Won)
	assert.Equal(t, domain.ReasonExhausted, status.Reason)

	next, err := f.service.NextQuestion(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.Nil(t, next.Question)
	require.NotNil(t, next.Completion)
	assert.Equal(t, domain.ReasonExhausted, next.Completion.Reason)
}

func TestNextQuestionRequiresStart(t *testing.T) {
	f := newFixture(t, morning())
	_, err := f.service.NextQuestion(context.Background(), "daily-1", "u1")
	assert.ErrorIs(t, err, domain.ErrNotStarted)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestSubmitAnswerWinsAtThresholdAndSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)

	res, err := f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q1", text(" 4 ")))
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.False(t, res.Completed)
	require.NotNil(t, res.NextQuestion)
	assert.NotEqual(t, "q1", res.NextQuestion.ID)

	res, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q2", index(1)))
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 2, res.CorrectCount)

	res, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q3", text("PACIFIC")))
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.Completed)
	assert.True(t, res.Won)
	assert.Equal(t, domain.ReasonThreshold, res.Reason)
	assert.Nil(t, res.NextQuestion)
	assert.Equal(t, 300, res.TimeLimit)
	assert.Equal(t, 4, res.TotalQuestions)

	assert.True(t, f.balance(t, "u1").Equal(decimal.RequireFromString("25.5")))
	assert.Equal(t, 1, f.ledger.Applied())

	status, err := f.service.Status(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.True(t, status.Settled)

	ranking, err := f.service.DailyRanking(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", ranking.Day)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, "u1", ranking.Entries[0].UserID)

	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q4", text("maybe")))
	assert.ErrorIs(t, err, domain.ErrAttemptCompleted)
	_, err = f.service.Forfeit(ctx, "daily-1", "u1")
	assert.ErrorIs(t, err, domain.ErrAttemptCompleted)

	// further reads never credit again
	for i := 0; i < 3; i++ {
		_, err = f.service.Status(ctx, "daily-1", "u1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.ledger.Applied())
	assert.True(t, f.balance(t, "u1").Equal(decimal.RequireFromString("25.5")))
}

func TestSubmitAnswerRejectsBadInputWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)

	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", domain.Answer{QuestionID: "q1"})
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))

	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q1", index(4)))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)
	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q1", index(-1)))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)

	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("nope", index(0)))
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	status, err := f.service.Status(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.Empty(t, status.Attempted)
	assert.Equal(t, 0, status.CorrectCount)
}

func TestSubmitAnswerDualEncoding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)

	// q4's key is literal text matching no option, so no index can be right
	res, err := f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q4", index(0)))
	require.NoError(t, err)
	assert.False(t, res.Correct)

	res, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q4", text("  Maybe")))
	require.NoError(t, err)
	assert.True(t, res.Correct)

	// index wins over text when both are present
	both := answer("q1", index(1))
	wrong := "3"
	both.Text = &wrong
	res, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", both)
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestRepeatSubmissionsAreAppended(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)

	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q1", index(0)))
	require.NoError(t, err)
	res, err := f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q1", index(1)))
	require.NoError(t, err)
	assert.True(t, res.Correct)

	status, err := f.service.Status(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q1"}, status.Attempted)
	assert.Equal(t, 1, status.CorrectCount)
}

func TestTimeLimitExpiresAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "daily-1", "u1")
	require.NoError(t, err)
	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q1", index(1)))
	require.NoError(t, err)

	f.clock.Advance(299 * time.Second)
	status, err := f.service.Status(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.False(t, status.Completed)

	f.clock.Advance(time.Second)
	_, err = f.service.SubmitAnswer(ctx, "daily-1", "u1", answer("q2", index(1)))
	assert.ErrorIs(t, err, domain.ErrAttemptCompleted)

	status, err = f.service.Status(ctx, "daily-1", "u1")
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.False(t, status.Won)
	assert.Equal(t, domain.ReasonExpired, status.Reason)
	assert.Equal(t, 1, status.CorrectCount)
	assert.True(t, f.balance(t, "u1").IsZero())
}

func TestForfeit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)

	view, err := f.service.Forfeit(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.True(t, view.Completed)
	assert.False(t, view.Won)
	assert.Equal(t, domain.ReasonForfeit, view.Reason)

	_, err = f.service.Start(ctx, "easy", "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
	assert.True(t, f.balance(t, "u1").IsZero())
}

func TestSettlementRetriedAfterLedgerFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)

	f.ledger.SetFailing(true)
	_, err = f.service.SubmitAnswer(ctx, "easy", "u1", answer("e1", index(0)))
	require.ErrorIs(t, err, domain.ErrSettlementFailed)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	stored, err := f.attempts.Get(ctx, domain.AttemptKey{ChallengeID: "easy", UserID: "u1", Day: "2024-05-01"})
	require.NoError(t, err)
	assert.True(t, stored.Won)
	assert.Nil(t, stored.SettledAt)
	assert.True(t, f.balance(t, "u1").IsZero())

	f.ledger.SetFailing(false)
	status, err := f.service.Status(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.True(t, status.Settled)
	assert.True(t, f.balance(t, "u1").Equal(decimal.NewFromInt(10)))

	_, err = f.service.Status(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.ledger.Applied())
}

func TestDailyRankingOrderingAndValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())

	win := func(user string) {
		t.Helper()
		_, err := f.service.Start(ctx, "easy", user)
		require.NoError(t, err)
		_, err = f.service.SubmitAnswer(ctx, "easy", user, answer("e1", index(0)))
		require.NoError(t, err)
	}
	win("bob")
	win("alice")
	win("carol")
	_, err := f.service.Start(ctx, "daily-1", "carol")
	require.NoError(t, err)
	for _, a := range []domain.Answer{answer("q1", index(1)), answer("q2", index(1)), answer("q3", index(1))} {
		_, err = f.service.SubmitAnswer(ctx, "daily-1", "carol", a)
		require.NoError(t, err)
	}

	ranking, err := f.service.DailyRanking(ctx, "2024-05-01", 0)
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 3)
	assert.Equal(t, "carol", ranking.Entries[0].UserID)
	assert.True(t, ranking.Entries[0].Amount.Equal(decimal.RequireFromString("35.5")))
	assert.Equal(t, "alice", ranking.Entries[1].UserID)
	assert.Equal(t, "bob", ranking.Entries[2].UserID)

	ranking, err = f.service.DailyRanking(ctx, "2024-05-01", 1)
	require.NoError(t, err)
	assert.Len(t, ranking.Entries, 1)

	ranking, err = f.service.DailyRanking(ctx, "2024-04-30", 0)
	require.NoError(t, err)
	assert.NotNil(t, ranking.Entries)
	assert.Empty(t, ranking.Entries)

	_, err = f.service.DailyRanking(ctx, "May 1st", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestBalanceRequiresUser(t *testing.T) {
	f := newFixture(t, morning())
	_, err := f.service.Balance(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSettlementKeyIsStable(t *testing.T) {
	key := domain.AttemptKey{ChallengeID: "c", UserID: "u", Day: "2024-05-01"}
	assert.Equal(t, app.SettlementKey(key), app.SettlementKey(key))
	assert.NotEqual(t, app.SettlementKey(key), app.SettlementKey(domain.AttemptKey{ChallengeID: "c", UserID: "u", Day: "2024-05-02"}))
}

func TestScoringCases(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		question string
		answer   domain.Answer
	}{
		{"letter key by index", "f1", index(1)},
		{"letter key by option text", "f1", text("B")},
		{"text key by index", "f2", index(0)},
		{"text key case-insensitive", "f2", text("paris")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, morning())
			_, err := f.service.Start(ctx, "five", "u1")
			require.NoError(t, err)
			res, err := f.service.SubmitAnswer(ctx, "five", "u1", answer(tc.question, tc.answer))
			require.NoError(t, err)
			assert.True(t, res.Correct)
		})
	}
}

func TestThreeCorrectWinsImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "five", "u1")
	require.NoError(t, err)

	for _, a := range []domain.Answer{answer("f1", index(1)), answer("f2", text("Paris")), answer("f3", text("berlin"))} {
		_, err = f.service.SubmitAnswer(ctx, "five", "u1", a)
		require.NoError(t, err)
	}

	next, err := f.service.NextQuestion(ctx, "five", "u1")
	require.NoError(t, err)
	assert.Nil(t, next.Question)
	require.NotNil(t, next.Completion)
	assert.True(t, next.Completion.Won)
	assert.Equal(t, domain.ReasonThreshold, next.Completion.Reason)

	_, err = f.service.SubmitAnswer(ctx, "five", "u1", answer("f4", index(3)))
	assert.ErrorIs(t, err, domain.ErrAttemptCompleted)
	status, err := f.service.Status(ctx, "five", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, status.CorrectCount)
}

func TestTwoCorrectLosesOnlyAfterExhaustion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "five", "u1")
	require.NoError(t, err)

	submissions := []domain.Answer{
		answer("f1", index(1)),
		answer("f2", index(0)),
		answer("f3", index(0)),
		answer("f4", index(0)),
		answer("f5", index(0)),
	}
	for i, a := range submissions {
		res, err := f.service.SubmitAnswer(ctx, "five", "u1", a)
		require.NoError(t, err)
		if i < len(submissions)-1 {
			assert.False(t, res.Completed, "completed early after submission %d", i+1)
			continue
		}
		assert.True(t, res.Completed)
		assert.False(t, res.Won)
		assert.Equal(t, domain.ReasonExhausted, res.Reason)
		assert.Equal(t, 2, res.CorrectCount)
	}

	status, err := f.service.Status(ctx, "five", "u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(status.Attempted), status.TotalQuestions)
	assert.True(t, f.balance(t, "u1").IsZero())
}

func TestNoTimeLimitNeverExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning())
	_, err := f.service.Start(ctx, "easy", "u1")
	require.NoError(t, err)

	// last minute of the local day, far beyond any time limit
	f.clock.Advance(13*time.Hour + 59*time.Minute)
	status, err := f.service.Status(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.True(t, status.Started)
	assert.False(t, status.Completed)

	next, err := f.service.NextQuestion(ctx, "easy", "u1")
	require.NoError(t, err)
	assert.NotNil(t, next.Question)
}
