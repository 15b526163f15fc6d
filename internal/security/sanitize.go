// Package security provides message sanitization and optional symmetric
// encryption for log records.
package security

import (
	"fmt"
	"regexp"
)

// mask replaces redacted values.
const mask = "***"

// Default sensitive key=value idioms. Matching is case-insensitive; the key
// name survives, the value does not.
var defaultPatterns = []string{
	`(?i)(password)["']?\s*[:=]\s*["']?[^"'\s]*["']?`,
	`(?i)(api_key)["']?\s*[:=]\s*["']?[^"'\s]*["']?`,
	`(?i)(token)["']?\s*[:=]\s*["']?[^"'\s]*["']?`,
	`(?i)(secret)["']?\s*[:=]\s*["']?[^"'\s]*["']?`,
}

// Sanitizer redacts sensitive substrings from log messages using an ordered
// list of compiled patterns.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

// NewSanitizer compiles the default pattern set.
func NewSanitizer() *Sanitizer {
	s := &Sanitizer{}
	for _, expr := range defaultPatterns {
		s.patterns = append(s.patterns, regexp.MustCompile(expr))
	}
	return s
}

// AddPattern appends a custom redaction pattern. The first capture group
// must be the key name to preserve.
func (s *Sanitizer) AddPattern(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("security: invalid pattern %q: %w", expr, err)
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// Sanitize applies every pattern in order, replacing matched values with the
// mask while keeping the key name.
func (s *Sanitizer) Sanitize(text string) string {
	out := text
	for _, re := range s.patterns {
		out = re.ReplaceAllString(out, "${1}="+mask)
	}
	return out
}
