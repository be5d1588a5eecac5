package events

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyFilter is returned when a filter has no criteria
var ErrEmptyFilter = errors.New("filter requires at least one criterion")

// Filter selects events. Every non-empty criterion must match.
type Filter struct {
	// Type matches the event type exactly
	Type EventType

	// Source matches the event source exactly
	Source string

	// Pattern is a glob (*, ?, [...]) matched case-insensitively against
	// the event type
	Pattern string

	// Predicate is an arbitrary check
	Predicate func(*Event) bool
}

// ByType returns a filter matching one event type
func ByType(t EventType) Filter {
	return Filter{Type: t}
}

// ByPattern returns a filter matching a glob over event types
func ByPattern(pattern string) Filter {
	return Filter{Pattern: pattern}
}

// BySource returns a filter matching one event source
func BySource(source string) Filter {
	return Filter{Source: source}
}

// Empty reports whether the filter has no criteria
func (f Filter) Empty() bool {
	return f.Type == "" && f.Source == "" && f.Pattern == "" && f.Predicate == nil
}

// matcher is a Filter with its pattern compiled
type matcher struct {
	filter  Filter
	pattern *regexp.Regexp
}

func newMatcher(f Filter) (*matcher, error) {
	if f.Empty() {
		return nil, ErrEmptyFilter
	}
	m := &matcher{filter: f}
	if f.Pattern != "" {
		re, err := compileGlob(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", f.Pattern, err)
		}
		m.pattern = re
	}
	return m, nil
}

func (m *matcher) matches(e *Event) bool {
	if e == nil {
		return false
	}
	if m.filter.Type != "" && e.Type != m.filter.Type {
		return false
	}
	if m.filter.Source != "" && e.Source != m.filter.Source {
		return false
	}
	if m.pattern != nil && !m.pattern.MatchString(string(e.Type)) {
		return false
	}
	if m.filter.Predicate != nil && !m.filter.Predicate(e) {
		return false
	}
	return true
}

// compileGlob translates a shell glob into an anchored, case-insensitive
// regular expression. * matches any run of characters including dots.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				// unterminated class is a literal bracket
				b.WriteString(`\[`)
				continue
			}
			class := strings.ReplaceAll(pattern[i+1:j], `\`, `\\`)
			switch {
			case strings.HasPrefix(class, "!"):
				class = "^" + class[1:]
			case strings.HasPrefix(class, "^"):
				class = `\` + class
			}
			b.WriteString("[" + class + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}
