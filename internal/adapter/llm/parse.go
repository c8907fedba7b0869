package llm

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNoAnswer means the raw model response contained no usable answer
// letter. The caller records the configured fallback answer instead.
var ErrNoAnswer = errors.New("no answer letter in response")

// ParseAnswer extracts exactly one answer letter from a raw model
// response. Single-letter tokens are matched against the allowed set
// A..A+numChoices-1; a single digit d in 1..numChoices maps to the
// d-th choice. Anything else is ErrNoAnswer.
func ParseAnswer(raw string, numChoices int) (string, error) {
	if numChoices <= 0 || numChoices > 26 {
		numChoices = 26
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrNoAnswer
	}

	tokens := strings.FieldsFunc(trimmed, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, tok := range tokens {
		runes := []rune(tok)
		if len(runes) != 1 {
			continue
		}
		r := runes[0]

		if unicode.IsLetter(r) {
			upper := unicode.ToUpper(r)
			if upper >= 'A' && upper < rune('A'+numChoices) {
				return string(upper), nil
			}
			continue
		}

		if r >= '1' && r <= '9' {
			d := int(r - '0')
			if d <= numChoices {
				return string(rune('A' + d - 1)), nil
			}
		}
	}

	return "", ErrNoAnswer
}
