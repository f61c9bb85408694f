package domain

import "errors"

var (
	// ErrUnauthorized is returned when no user identity accompanies a request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrChallengeNotFound indicates the challenge could not be loaded from the catalog.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrQuestionNotFound indicates a submitted question ID is not in the challenge's bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAttemptNotFound is returned by attempt stores for an unknown key.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAlreadyStarted is returned when the user already has an attempt for today.
	ErrAlreadyStarted = errors.New("already participated today")
	// ErrStaleAttempt is returned when an attempt was modified by a concurrent request.
	ErrStaleAttempt = errors.New("attempt was modified concurrently")
	// ErrNotStarted is returned when operating on a challenge the user has not started today.
	ErrNotStarted = errors.New("challenge not started")
	// ErrAttemptCompleted is returned when mutating a completed attempt.
	ErrAttemptCompleted = errors.New("challenge already completed")
	// ErrChallengeInactive is returned when starting a disabled challenge.
	ErrChallengeInactive = errors.New("challenge is not active")
	// ErrInvalidAnswer indicates a submission carrying neither a usable answer nor index.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrInvalidDate indicates a malformed YYYY-MM-DD day.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidQuestion indicates a question whose correct answer cannot be resolved.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrSettlementFailed wraps failures crediting a won attempt's reward.
	ErrSettlementFailed = errors.New("reward settlement failed")
)

// Kind classifies errors for transports.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindConflict
	KindNotFound
	KindInvalidState
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}

// KindOf maps err onto the error taxonomy. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrSettlementFailed):
		return KindInternal
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrStaleAttempt):
		return KindConflict
	case errors.Is(err, ErrChallengeNotFound), errors.Is(err, ErrQuestionNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotStarted), errors.Is(err, ErrAttemptCompleted), errors.Is(err, ErrChallengeInactive):
		return KindInvalidState
	case errors.Is(err, ErrInvalidAnswer), errors.Is(err, ErrInvalidDate):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}
