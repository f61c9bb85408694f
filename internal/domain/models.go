package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Question is a single multiple-choice entry in a challenge's question bank.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`

	// Key is CorrectAnswer resolved against Options; filled by Challenge.Prepare.
	Key AnswerKey `json:"-"`
}

// Challenge is a daily quiz definition as served by the catalog.
type Challenge struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Reward          decimal.Decimal `json:"reward"`
	RequiredCorrect int             `json:"requiredCorrect"`
	TimeLimit       int             `json:"timeLimit"` // seconds, 0 = unlimited
	Active          bool            `json:"active"`
	Questions       []Question      `json:"questions"`
}

// TimeLimitDuration converts TimeLimit to a duration; zero means unlimited.
func (c Challenge) TimeLimitDuration() time.Duration {
	if c.TimeLimit <= 0 {
		return 0
	}
	return time.Duration(c.TimeLimit) * time.Second
}

// TotalQuestions is the size of the question bank.
func (c Challenge) TotalQuestions() int {
	return len(c.Questions)
}

// Question looks up a question by ID.
func (c Challenge) Question(id string) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Summary is the public listing form of a challenge.
func (c Challenge) Summary() ChallengeSummary {
	return ChallengeSummary{
		ID:              c.ID,
		Title:           c.Title,
		Reward:          c.Reward,
		RequiredCorrect: c.RequiredCorrect,
		TimeLimit:       c.TimeLimit,
		TotalQuestions:  c.TotalQuestions(),
		Active:          c.Active,
	}
}

// ChallengeSummary omits the question bank.
type ChallengeSummary struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Reward          decimal.Decimal `json:"reward"`
	RequiredCorrect int             `json:"requiredCorrect"`
	TimeLimit       int             `json:"timeLimit"`
	TotalQuestions  int             `json:"totalQuestions"`
	Active          bool            `json:"active"`
}

// CompletionReason records which trigger closed an attempt.
type CompletionReason string

const (
	ReasonNone      CompletionReason = ""
	ReasonThreshold CompletionReason = "threshold"
	ReasonExhausted CompletionReason = "exhausted"
	ReasonExpired   CompletionReason = "expired"
	ReasonForfeit   CompletionReason = "forfeit"
)

// AttemptKey identifies one user's attempt at one challenge on one calendar day.
type AttemptKey struct {
	ChallengeID string
	UserID      string
	Day         string // YYYY-MM-DD in the reference timezone
}

func (k AttemptKey) String() string {
	return k.ChallengeID + "_" + k.UserID + "_" + k.Day
}

// Attempt is the persisted state of a daily challenge attempt.
type Attempt struct {
	ChallengeID          string           `json:"challengeId"`
	UserID               string           `json:"userId"`
	Day                  string           `json:"date"`
	CorrectCount         int              `json:"correctCount"`
	AttemptedQuestionIDs []string         `json:"attemptedQuestions"`
	Completed            bool             `json:"completed"`
	Won                  bool             `json:"won"`
	Reason               CompletionReason `json:"completionReason,omitempty"`
	StartedAt            time.Time        `json:"startedAt"`
	ExpiresAt            time.Time        `json:"expiresAt"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
	SettledAt            *time.Time       `json:"settledAt,omitempty"`
	Version              int64            `json:"version"`
}

// Key returns the attempt's identity.
func (a Attempt) Key() AttemptKey {
	return AttemptKey{ChallengeID: a.ChallengeID, UserID: a.UserID, Day: a.Day}
}

// Attempted reports whether questionID was already submitted.
func (a Attempt) Attempted(questionID string) bool {
	for _, id := range a.AttemptedQuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// NeedsSettlement is true for won attempts whose reward has not been confirmed.
func (a Attempt) NeedsSettlement() bool {
	return a.Won && a.SettledAt == nil
}

// Pending is true while the attempt still requires engine work: open, or won but unsettled.
func (a Attempt) Pending() bool {
	return !a.Completed || a.NeedsSettlement()
}

// Clone returns a copy that shares no slices or pointers with a.
func (a Attempt) Clone() Attempt {
	out := a
	out.AttemptedQuestionIDs = append([]string(nil), a.AttemptedQuestionIDs...)
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.SettledAt != nil {
		t := *a.SettledAt
		out.SettledAt = &t
	}
	return out
}

// Answer is a user's submission for one question. Exactly one of Text or Index is expected;
// Index takes precedence when both are set.
type Answer struct {
	QuestionID string  `json:"questionId"`
	Text       *string `json:"answer,omitempty"`
	Index      *int    `json:"answerIndex,omitempty"`
}

// QuestionView is a question with its ground truth stripped.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View strips the correct answer from q.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Options: append([]string(nil), q.Options...),
	}
}

// AttemptView merges attempt state with challenge metadata for status queries.
type AttemptView struct {
	Started         bool             `json:"started"`
	ChallengeID     string           `json:"challengeId"`
	UserID          string           `json:"userId,omitempty"`
	Day             string           `json:"date,omitempty"`
	CorrectCount    int              `json:"correctCount"`
	Attempted       []string         `json:"attemptedQuestions"`
	Completed       bool             `json:"completed"`
	Won             bool             `json:"won"`
	Reason          CompletionReason `json:"completionReason,omitempty"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	Settled         bool             `json:"settled"`
	TimeLimit       int              `json:"timeLimit"`
	TotalQuestions  int              `json:"totalQuestions"`
	RequiredCorrect int              `json:"requiredCorrect"`
	Reward          decimal.Decimal  `json:"reward"`
}

// NewAttemptView builds the view for an existing attempt.
func NewAttemptView(a Attempt, c Challenge) AttemptView {
	startedAt, expiresAt := a.StartedAt, a.ExpiresAt
	return AttemptView{
		Started:         true,
		ChallengeID:     a.ChallengeID,
		UserID:          a.UserID,
		Day:             a.Day,
		CorrectCount:    a.CorrectCount,
		Attempted:       append([]string{}, a.AttemptedQuestionIDs...),
		Completed:       a.Completed,
		Won:             a.Won,
		Reason:          a.Reason,
		StartedAt:       &startedAt,
		ExpiresAt:       &expiresAt,
		CompletedAt:     a.CompletedAt,
		Settled:         a.SettledAt != nil,
		TimeLimit:       c.TimeLimit,
		TotalQuestions:  c.TotalQuestions(),
		RequiredCorrect: c.RequiredCorrect,
		Reward:          c.Reward,
	}
}

// NotStartedView describes a challenge the user has not started today.
func NotStartedView(c Challenge) AttemptView {
	return AttemptView{
		Started:         false,
		ChallengeID:     c.ID,
		Attempted:       []string{},
		TimeLimit:       c.TimeLimit,
		TotalQuestions:  c.TotalQuestions(),
		RequiredCorrect: c.RequiredCorrect,
		Reward:          c.Reward,
	}
}

// CompletionView is returned in place of a question once an attempt is terminal.
type CompletionView struct {
	ChallengeID    string           `json:"challengeId"`
	CorrectCount   int              `json:"correctCount"`
	Completed      bool             `json:"completed"`
	Won            bool             `json:"won"`
	Reason         CompletionReason `json:"completionReason,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	TimeLimit      int              `json:"timeLimit"`
	TotalQuestions int              `json:"totalQuestions"`
}

// NewCompletionView summarizes a completed attempt.
func NewCompletionView(a Attempt, c Challenge) CompletionView {
	return CompletionView{
		ChallengeID:    a.ChallengeID,
		CorrectCount:   a.CorrectCount,
		Completed:      a.Completed,
		Won:            a.Won,
		Reason:         a.Reason,
		CompletedAt:    a.CompletedAt,
		TimeLimit:      c.TimeLimit,
		TotalQuestions: c.TotalQuestions(),
	}
}

// NextQuestion holds exactly one of Question or Completion.
type NextQuestion struct {
	Question   *QuestionView   `json:"question,omitempty"`
	Completion *CompletionView `json:"completion,omitempty"`
}

// SubmissionResult is the outcome of one answer submission.
type SubmissionResult struct {
	QuestionID     string           `json:"questionId"`
	Correct        bool             `json:"correct"`
	CorrectCount   int              `json:"correctCount"`
	Completed      bool             `json:"completed"`
	Won            bool             `json:"won"`
	Reason         CompletionReason `json:"completionReason,omitempty"`
	TimeLimit      int              `json:"timeLimit"`
	TotalQuestions int              `json:"totalQuestions"`
	NextQuestion   *QuestionView    `json:"nextQuestion,omitempty"`
}

// RankingEntry is one user's cumulative reward for a day.
type RankingEntry struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// DailyRanking is the ordered top list for one day.
type DailyRanking struct {
	Day     string         `json:"date"`
	Entries []RankingEntry `json:"entries"`
}
