package domain

import (
	"fmt"
	"strings"
)

// Work is one literary unit of the corpus (immutable value object).
// Text holds lowercase a-z only.
type Work struct {
	name string
	text string
}

// NewWork validates and creates a Work.
func NewWork(name, text string) (Work, error) {
	if strings.TrimSpace(name) == "" {
		return Work{}, fmt.Errorf("work name is required: %w", ErrInvalidWork)
	}
	for i := 0; i < len(text); i++ {
		if c := text[i]; c < 'a' || c > 'z' {
			return Work{}, fmt.Errorf("work %q: byte %q at offset %d is not a-z: %w", name, c, i, ErrInvalidWork)
		}
	}
	return Work{name: name, text: text}, nil
}

// ReconstructWork creates a Work without validation (storage hydration).
func ReconstructWork(name, text string) Work {
	return Work{name: name, text: text}
}

// Name returns the unique work title.
func (w Work) Name() string { return w.name }

// Text returns the cleaned work text.
func (w Work) Text() string { return w.text }

// Len returns the number of characters in the cleaned text.
func (w Work) Len() int { return len(w.text) }

// Slug returns a storage-safe identifier derived from the name.
func (w Work) Slug() string { return Slug(w.name) }

// Slug lowercases s and replaces every run of non-alphanumeric bytes with '_'.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
			fallthrough
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteByte(c)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
