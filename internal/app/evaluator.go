package app

import (
	"fmt"

	"daily-challenge-service/internal/domain"
)

// Evaluate scores answer against q's resolved answer key. Text is compared after trimming and
// lowercasing; an index is checked against the option list first.
func Evaluate(q domain.Question, answer domain.Answer) (bool, error) {
	key := q.Key
	if key.Kind == domain.AnswerUnresolved {
		return false, fmt.Errorf("%w: question %s has no answer key", domain.ErrInvalidQuestion, q.ID)
	}

	switch {
	case answer.Index != nil:
		idx := *answer.Index
		if idx < 0 || idx >= len(q.Options) {
			return false, fmt.Errorf("%w: answerIndex %d out of range", domain.ErrInvalidAnswer, idx)
		}
		if key.Kind == domain.AnswerIndex {
			return idx == key.Index, nil
		}
		return domain.Normalize(q.Options[idx]) == key.Text, nil

	case answer.Text != nil:
		given := domain.Normalize(*answer.Text)
		if key.Kind == domain.AnswerIndex {
			return given == domain.Normalize(q.Options[key.Index]), nil
		}
		return given == key.Text, nil

	default:
		return false, fmt.Errorf("%w: answer or answerIndex required", domain.ErrInvalidAnswer)
	}
}
