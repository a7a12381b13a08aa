// Package phone canonicalizes phone numbers so all later matching is either an
// exact string comparison or a suffix comparison.
package phone

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPrivatePattern matches the raw origin strings carriers and handsets use
// for withheld callers. Android reports -1/-2/-3 for private/unknown/payphone.
const DefaultPrivatePattern = `(?i)^(-[123]|private|unknown|anonymous|withheld|restricted)$`

// Normalize returns the canonical form of a raw number:
//   - ASCII digits are kept
//   - a single "+" is kept only when it precedes every digit
//   - every other character is dropped
//
// It returns "" when no digit remains. Normalize is idempotent.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	plus := false
	digits := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
			digits++
		case c == '+' && !plus && digits == 0:
			b.WriteByte(c)
			plus = true
		}
	}
	if digits == 0 {
		return ""
	}
	return b.String()
}

// Normalizer detects private numbers with a configurable pattern and normalizes
// everything else.
type Normalizer struct {
	private *regexp.Regexp
}

// NewNormalizer compiles pattern; an empty pattern selects DefaultPrivatePattern.
func NewNormalizer(pattern string) (*Normalizer, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPrivatePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid private number pattern: %w", err)
	}
	return &Normalizer{private: re}, nil
}

// MustNormalizer is NewNormalizer for patterns known to be valid.
func MustNormalizer(pattern string) *Normalizer {
	n, err := NewNormalizer(pattern)
	if err != nil {
		panic(err)
	}
	return n
}

// IsPrivateNumber reports whether raw denotes a withheld origin. It must be
// called on the raw value: normalization erases the markers it looks for.
func (n *Normalizer) IsPrivateNumber(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	return n.private.MatchString(trimmed)
}

// Normalize is the package-level Normalize; present so callers can depend on a
// single value.
func (n *Normalizer) Normalize(raw string) string {
	return Normalize(raw)
}

// Suffixes returns every suffix of a normalized number, longest first, that
// could be a stored partial number. The leading "+" never starts a suffix other
// than the full number.
func Suffixes(number string) []string {
	if number == "" {
		return nil
	}
	out := make([]string, 0, len(number))
	for i := 0; i < len(number); i++ {
		if i > 0 && number[i] == '+' {
			continue
		}
		out = append(out, number[i:])
	}
	return out
}
