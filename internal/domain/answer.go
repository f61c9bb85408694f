package domain

import (
	"fmt"
	"strings"
)

// AnswerKind tells how a question's correct answer is encoded.
type AnswerKind int

const (
	AnswerUnresolved AnswerKind = iota
	// AnswerIndex means the correct answer is the option at AnswerKey.Index.
	AnswerIndex
	// AnswerText means the correct answer is the literal AnswerKey.Text.
	AnswerText
)

// AnswerKey is the resolved form of a question's correct answer.
type AnswerKey struct {
	Kind  AnswerKind
	Index int
	Text  string
}

var letterCodes = []string{"a", "b", "c", "d"}

// Normalize trims and lowercases a value before comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseAnswerKey resolves raw against options. A letter code a-d selects an option by position;
// anything else is literal answer text.
func ParseAnswerKey(raw string, options []string) (AnswerKey, error) {
	norm := Normalize(raw)
	if norm == "" {
		return AnswerKey{}, fmt.Errorf("%w: empty correct answer", ErrInvalidQuestion)
	}
	for i, code := range letterCodes {
		if norm != code {
			continue
		}
		if i >= len(options) {
			return AnswerKey{}, fmt.Errorf("%w: answer %q has no option at index %d", ErrInvalidQuestion, raw, i)
		}
		return AnswerKey{Kind: AnswerIndex, Index: i}, nil
	}
	return AnswerKey{Kind: AnswerText, Text: norm}, nil
}

// Prepare resolves every question's answer key. Loaders call it once when a challenge enters
// the process so scoring never has to reinterpret CorrectAnswer.
func (c *Challenge) Prepare() error {
	for i := range c.Questions {
		q := &c.Questions[i]
		key, err := ParseAnswerKey(q.CorrectAnswer, q.Options)
		if err != nil {
			return fmt.Errorf("challenge %s question %s: %w", c.ID, q.ID, err)
		}
		q.Key = key
	}
	return nil
}
