package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily-challenge-service/internal/domain"
	"daily-challenge-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChallengeCatalog is the read-only source of challenge definitions.
type ChallengeCatalog interface {
	GetChallenge(ctx context.Context, challengeID string) (domain.Challenge, error)
	ListActive(ctx context.Context) ([]domain.Challenge, error)
}

// AttemptRepository persists attempts. Update is a compare-and-swap on Attempt.Version:
// it fails with domain.ErrStaleAttempt when the stored version differs and otherwise
// returns the attempt with its version advanced.
type AttemptRepository interface {
	Get(ctx context.Context, key domain.AttemptKey) (domain.Attempt, error)
	Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	Update(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	ListPending(ctx context.Context, day string) ([]domain.Attempt, error)
}

// BalanceLedger credits user balances atomically. Credit applies at most once per key and
// reports whether this call applied it.
type BalanceLedger interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// RankingBoard accumulates per-day rewards. Record applies at most once per key.
type RankingBoard interface {
	Record(ctx context.Context, day, userID string, amount decimal.Decimal, key uuid.UUID) (bool, error)
	Top(ctx context.Context, day string, limit int) ([]domain.RankingEntry, error)
}

const (
	defaultRankingLimit = 10
	maxRankingLimit     = 100
)

// ChallengeService runs the daily challenge engine.
type ChallengeService struct {
	catalog  ChallengeCatalog
	attempts AttemptRepository
	ledger   BalanceLedger
	ranking  RankingBoard
	selector *Selector
	calendar domain.Calendar
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// Option customizes a ChallengeService.
type Option func(*ChallengeService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ChallengeService) { s.now = now }
}

// WithSelector sets the question selector (and so its random source).
func WithSelector(selector *Selector) Option {
	return func(s *ChallengeService) { s.selector = selector }
}

// WithCalendar sets the reference timezone for day boundaries.
func WithCalendar(calendar domain.Calendar) Option {
	return func(s *ChallengeService) { s.calendar = calendar }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *ChallengeService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ChallengeService) { s.metrics = m }
}

func NewChallengeService(catalog ChallengeCatalog, attempts AttemptRepository, ledger BalanceLedger, ranking RankingBoard, opts ...Option) *ChallengeService {
	s := &ChallengeService{
		catalog:  catalog,
		attempts: attempts,
		ledger:   ledger,
		ranking:  ranking,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = NewSelector(s.now().UnixNano())
	}
	return s
}

// Today returns the current day key in the reference timezone.
func (s *ChallengeService) Today() string {
	return s.calendar.Day(s.now())
}

// ListActive returns the public listing of active challenges.
func (s *ChallengeService) ListActive(ctx context.Context) ([]domain.ChallengeSummary, error) {
	challenges, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	out := make([]domain.ChallengeSummary, 0, len(challenges))
	for _, c := range challenges {
		out = append(out, c.Summary())
	}
	return out, nil
}

// Start opens today's attempt for the user.
func (s *ChallengeService) Start(ctx context.Context, challengeID, userID string) (domain.AttemptView, error) {
	if userID == "" {
		return domain.AttemptView{}, domain.ErrUnauthorized
	}
	challenge, err := s.catalog.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if !challenge.Active {
		return domain.AttemptView{}, domain.ErrChallengeInactive
	}

	now := s.now()
	attempt := domain.Attempt{
		ChallengeID:          challengeID,
		UserID:               userID,
		Day:                  s.calendar.Day(now),
		AttemptedQuestionIDs: []string{},
		StartedAt:            now,
		ExpiresAt:            s.calendar.EndOfDay(now),
	}
	created, err := s.attempts.Create(ctx, attempt)
	if err != nil {
		return domain.AttemptView{}, err
	}
	s.metrics.AttemptStarted()
	s.log.Info("challenge attempt started",
		zap.String("challenge_id", challengeID),
		zap.String("user_id", userID),
		zap.String("day", created.Day))
	return domain.NewAttemptView(created, challenge), nil
}

// Status reports today's attempt, or challenge metadata alone when none exists.
func (s *ChallengeService) Status(ctx context.Context, challengeID, userID string) (domain.AttemptView, error) {
	if userID == "" {
		return domain.AttemptView{}, domain.ErrUnauthorized
	}
	challenge, err := s.catalog.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	attempt, err := s.attempts.Get(ctx, s.todayKey(challengeID, userID))
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.NotStartedView(challenge), nil
	}
	if err != nil {
		return domain.AttemptView{}, err
	}
	attempt, err = s.guard(ctx, attempt, challenge)
	if err != nil {
		return domain.AttemptView{}, err
	}
	return domain.NewAttemptView(attempt, challenge), nil
}

// NextQuestion serves a random unanswered question, or the completion summary when the
// attempt is over or the bank is exhausted.
func (s *ChallengeService) NextQuestion(ctx context.Context, challengeID, userID string) (domain.NextQuestion, error) {
	challenge, attempt, err := s.load(ctx, challengeID, userID)
	if err != nil {
		return domain.NextQuestion{}, err
	}
	if attempt.Completed {
		view := domain.NewCompletionView(attempt, challenge)
		return domain.NextQuestion{Completion: &view}, nil
	}

	if q, ok := s.selector.Pick(challenge.Questions, attempt.Attempted); ok {
		view := q.View()
		return domain.NextQuestion{Question: &view}, nil
	}

	finished := complete(attempt, attempt.CorrectCount >= challenge.RequiredCorrect, domain.ReasonExhausted, s.now())
	attempt, err = s.commit(ctx, attempt, finished, challenge)
	if err != nil {
		return domain.NextQuestion{}, err
	}
	view := domain.NewCompletionView(attempt, challenge)
	return domain.NextQuestion{Completion: &view}, nil
}

// SubmitAnswer scores one answer, applies completion triggers and settles a newly won attempt.
// It is not idempotent.
func (s *ChallengeService) SubmitAnswer(ctx context.Context, challengeID, userID string, answer domain.Answer) (domain.SubmissionResult, error) {
	challenge, attempt, err := s.load(ctx, challengeID, userID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	if attempt.Completed {
		return domain.SubmissionResult{}, domain.ErrAttemptCompleted
	}
	question, ok := challenge.Question(answer.QuestionID)
	if !ok {
		return domain.SubmissionResult{}, domain.ErrQuestionNotFound
	}
	correct, err := Evaluate(question, answer)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	next := attempt.Clone()
	next.AttemptedQuestionIDs = append(next.AttemptedQuestionIDs, question.ID)
	if correct {
		next.CorrectCount++
	}
	next = detectCompletion(next, challenge, s.now())

	attempt, err = s.commit(ctx, attempt, next, challenge)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	result := domain.SubmissionResult{
		QuestionID:     question.ID,
		Correct:        correct,
		CorrectCount:   attempt.CorrectCount,
		Completed:      attempt.Completed,
		Won:            attempt.Won,
		Reason:         attempt.Reason,
		TimeLimit:      challenge.TimeLimit,
		TotalQuestions: challenge.TotalQuestions(),
	}
	if !attempt.Completed {
		if q, ok := s.selector.Pick(challenge.Questions, attempt.Attempted); ok {
			view := q.View()
			result.NextQuestion = &view
		}
	}
	return result, nil
}

// Forfeit closes an open attempt as lost.
func (s *ChallengeService) Forfeit(ctx context.Context, challengeID, userID string) (domain.CompletionView, error) {
	challenge, attempt, err := s.load(ctx, challengeID, userID)
	if err != nil {
		return domain.CompletionView{}, err
	}
	if attempt.Completed {
		return domain.CompletionView{}, domain.ErrAttemptCompleted
	}
	attempt, err = s.commit(ctx, attempt, complete(attempt, false, domain.ReasonForfeit, s.now()), challenge)
	if err != nil {
		return domain.CompletionView{}, err
	}
	return domain.NewCompletionView(attempt, challenge), nil
}

// DailyRanking returns the top earners for day (today when empty).
func (s *ChallengeService) DailyRanking(ctx context.Context, day string, limit int) (domain.DailyRanking, error) {
	if day == "" {
		day = s.Today()
	} else {
		parsed, err := s.calendar.ParseDay(day)
		if err != nil {
			return domain.DailyRanking{}, err
		}
		day = parsed
	}
	if limit <= 0 {
		limit = defaultRankingLimit
	}
	if limit > maxRankingLimit {
		limit = maxRankingLimit
	}
	entries, err := s.ranking.Top(ctx, day, limit)
	if err != nil {
		return domain.DailyRanking{}, fmt.Errorf("daily ranking: %w", err)
	}
	if entries == nil {
		entries = []domain.RankingEntry{}
	}
	return domain.DailyRanking{Day: day, Entries: entries}, nil
}

// Balance returns the user's credited amount.
func (s *ChallengeService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, domain.ErrUnauthorized
	}
	return s.ledger.Balance(ctx, userID)
}

func (s *ChallengeService) todayKey(challengeID, userID string) domain.AttemptKey {
	return domain.AttemptKey{ChallengeID: challengeID, UserID: userID, Day: s.Today()}
}

// load fetches the challenge and today's attempt and runs the time guard.
func (s *ChallengeService) load(ctx context.Context, challengeID, userID string) (domain.Challenge, domain.Attempt, error) {
	if userID == "" {
		return domain.Challenge{}, domain.Attempt{}, domain.ErrUnauthorized
	}
	challenge, err := s.catalog.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.Challenge{}, domain.Attempt{}, err
	}
	attempt, err := s.attempts.Get(ctx, s.todayKey(challengeID, userID))
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.Challenge{}, domain.Attempt{}, domain.ErrNotStarted
	}
	if err != nil {
		return domain.Challenge{}, domain.Attempt{}, err
	}
	attempt, err = s.guard(ctx, attempt, challenge)
	if err != nil {
		return domain.Challenge{}, domain.Attempt{}, err
	}
	return challenge, attempt, nil
}

// guard applies the time guard and retries any settlement left unfinished.
func (s *ChallengeService) guard(ctx context.Context, attempt domain.Attempt, challenge domain.Challenge) (domain.Attempt, error) {
	if expired, changed := ApplyTimeGuard(attempt, challenge, s.now()); changed {
		return s.commit(ctx, attempt, expired, challenge)
	}
	if attempt.NeedsSettlement() {
		return s.settle(ctx, attempt, challenge)
	}
	return attempt, nil
}

// commit persists next over before and settles the reward if next is won and unsettled.
func (s *ChallengeService) commit(ctx context.Context, before, next domain.Attempt, challenge domain.Challenge) (domain.Attempt, error) {
	updated, err := s.attempts.Update(ctx, next)
	if err != nil {
		return before, err
	}
	if !before.Completed && updated.Completed {
		s.metrics.AttemptCompleted(string(updated.Reason), updated.Won)
		s.log.Info("challenge attempt completed",
			zap.String("attempt", updated.Key().String()),
			zap.String("reason", string(updated.Reason)),
			zap.Bool("won", updated.Won),
			zap.Int("correct", updated.CorrectCount))
	}
	if updated.NeedsSettlement() {
		return s.settle(ctx, updated, challenge)
	}
	return updated, nil
}
