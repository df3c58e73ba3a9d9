// Package pattern implements ranked regular-expression hypotheses.
//
// A List is evaluated in order and the first pattern that matches wins;
// later patterns are not consulted. Each pattern is addressable by name so
// precedence can be unit tested one pattern at a time.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled expression whose first capture group carries the value.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// List is an ordered set of patterns for one field.
type List []Pattern

// Match is the outcome of evaluating a List.
type Match struct {
	Value   string
	Pattern string
}

// MustCompile builds a List named field#0, field#1, ... from exprs in order.
func MustCompile(field string, exprs ...string) List {
	list := make(List, 0, len(exprs))
	for i, expr := range exprs {
		list = append(list, Pattern{
			Name: fmt.Sprintf("%s#%d", field, i),
			Re:   regexp.MustCompile(expr),
		})
	}
	return list
}

// First returns the trimmed capture of the first pattern that matches s
// with a non-empty value.
func (l List) First(s string) (Match, bool) {
	for _, p := range l {
		m := p.Re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 {
			value = m[1]
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		return Match{Value: value, Pattern: p.Name}, true
	}
	return Match{}, false
}

// FirstOr returns the first match value or fallback.
func (l List) FirstOr(s, fallback string) string {
	if m, ok := l.First(s); ok {
		return m.Value
	}
	return fallback
}

// Markers is a set of literal, case-insensitive substrings.
type Markers []string

// FindIn returns the first marker contained in s.
func (m Markers) FindIn(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, marker := range m {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return marker, true
		}
	}
	return "", false
}

// In reports whether any marker is contained in s.
func (m Markers) In(s string) bool {
	_, ok := m.FindIn(s)
	return ok
}
