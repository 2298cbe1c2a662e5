// Package sanitize cleans text that crosses the relay in either direction.
//
// Lengths are counted in Unicode code points, so truncation never splits a
// multi-byte character.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxTranscript = 100_000
	MaxTitle      = 500
	MaxOutput     = 50_000

	// MinTranscript is the shortest sanitized transcript worth sending upstream.
	MinTranscript = 50
)

// Value sanitizes v when it is a string and returns "" for any other type.
func Value(v any, maxLength int) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Text(s, maxLength)
}

// Text strips ASCII control characters other than tab, line feed and carriage
// return, keeps at most maxLength code points and trims surrounding whitespace.
func Text(s string, maxLength int) string {
	if maxLength < 0 {
		maxLength = 0
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLength*utf8.UTFMax))

	n := 0
	for _, r := range s {
		if isControl(r) {
			continue
		}
		if n == maxLength {
			break
		}
		b.WriteRune(r)
		n++
	}

	return strings.TrimFunc(b.String(), isSpace)
}

// Len returns the length of s as Text measures it.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

func isControl(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r == 0x0B, r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r == 0x7F:
		return true
	}
	return false
}

// isSpace is Unicode White_Space without U+0085 (NEL), plus the byte order
// mark.
func isSpace(r rune) bool {
	switch r {
	case '\uFEFF':
		return true
	case '\u0085':
		return false
	}
	return unicode.IsSpace(r)
}
