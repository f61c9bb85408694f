package app

import (
	"time"

	"daily-challenge-service/internal/domain"
)

// ApplyTimeGuard force-completes an open attempt whose session time limit has elapsed.
// It is pure: callers persist the returned attempt when changed is true. Challenges with no
// time limit are never expired.
func ApplyTimeGuard(attempt domain.Attempt, challenge domain.Challenge, now time.Time) (domain.Attempt, bool) {
	if attempt.Completed {
		return attempt, false
	}
	limit := challenge.TimeLimitDuration()
	if limit <= 0 || now.Sub(attempt.StartedAt) < limit {
		return attempt, false
	}
	return complete(attempt, attempt.CorrectCount >= challenge.RequiredCorrect, domain.ReasonExpired, now), true
}

// detectCompletion applies the threshold trigger, then the exhaustion trigger.
func detectCompletion(attempt domain.Attempt, challenge domain.Challenge, now time.Time) domain.Attempt {
	if attempt.Completed {
		return attempt
	}
	if attempt.CorrectCount >= challenge.RequiredCorrect {
		return complete(attempt, true, domain.ReasonThreshold, now)
	}
	if len(attempt.AttemptedQuestionIDs) >= challenge.TotalQuestions() {
		return complete(attempt, attempt.CorrectCount >= challenge.RequiredCorrect, domain.ReasonExhausted, now)
	}
	return attempt
}

// complete is the single terminal transition; completed and won are always set together.
func complete(attempt domain.Attempt, won bool, reason domain.CompletionReason, now time.Time) domain.Attempt {
	out := attempt.Clone()
	out.Completed = true
	out.Won = won
	out.Reason = reason
	completedAt := now
	out.CompletedAt = &completedAt
	return out
}
