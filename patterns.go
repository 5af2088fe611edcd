package invoicetable

import (
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// referenceMatchTimeout bounds a single pattern evaluation. Some patterns
// contain unbounded wildcards between tokens.
const referenceMatchTimeout = 2 * time.Second

// ReferencePattern is one alternative of the reference number search.
type ReferencePattern struct {
	Name string
	Expr string // Alternative body, without the shared boundary guards
	re   *regexp2.Regexp
}

// NewReferencePattern compiles an alternative. Every alternative is anchored
// on a word boundary at both ends and must not be followed by a digit or a
// hyphen. Matching ignores case.
//
// Lookbehind and lookahead are needed here, which is why regexp2 is used
// instead of the RE2-based standard library package.
func NewReferencePattern(name, expr string) (ReferencePattern, error) {
	re, err := regexp2.Compile(`\b(?:`+expr+`)\b(?![\d-])`, regexp2.IgnoreCase)
	if err != nil {
		return ReferencePattern{}, errors.Wrapf(err, "compile reference pattern %q", name)
	}
	re.MatchTimeout = referenceMatchTimeout
	return ReferencePattern{Name: name, Expr: expr, re: re}, nil
}

// Find returns the first match of the pattern in text.
func (p ReferencePattern) Find(text string) (string, bool, error) {
	if p.re == nil {
		return "", false, errors.Errorf("reference pattern %q is not compiled", p.Name)
	}
	m, err := p.re.FindStringMatch(text)
	if err != nil {
		return "", false, errors.Wrapf(err, "match reference pattern %q", p.Name)
	}
	if m == nil {
		return "", false, nil
	}
	return m.String(), true, nil
}

// The declared order is significant: several alternatives overlap and the
// first one that matches a row wins.
var referenceAlternatives = []struct {
	name string
	expr string
}{
	{"digits-7-8", `(?<![A-Z]{4})\d{7,8}`},
	{"digits-8-dash-2", `\d{8}-\d{2}`},
	{"letters-2-digits-9", `(?!CU)[A-Z]{2}\d{9}`},
	{"letters-3-digits-6-letter", `[A-Z]{3}\d{6}[A-Z]`},
	{"letters-4-digits-6-letter-digits-4-letter", `[A-Z]{4}\d{6}[A-Z]\d{4}[A-Z]`},
	{"digits-2-letters-2-digits-4-dash-3", `\d{2}[A-Z]{2}\d{4}-\d{3}`},
	{"letters-digits-suffix", `[A-Z]{2,}\d{4,}-?\d{0,3}`},
	{"letters-slash-digits-slash-range", `[A-Z]{1,3}/\d{1,4}/\d{2}-\d{2}`},
	{"digit-groups-4x4", `\d{4}-\d{4}-\d{4}-\d{4}`},
	{"fiscal-year-23-24", `23-24/\d{5,}`},
	{"letters-3-dash-digits-slash-range", `[A-Z]{3}-\d{3}/\d{2}-\d{2}`},
	{"two-5-digit-tokens", `\b\d{5}\b.*\b\d{5}\b`},
	{"three-5-digit-tokens", `\b\d{5}\b.*?\b\d{5}\b.*?\b\d{5}\b`},
	{"5-digit-token", `\b\d{5}\b`},
	{"letter-digits-2-dash-5", `[A-Z]\d{2}-\d{5}`},
}

var defaultReferencePatterns = mustCompileReferencePatterns()

func mustCompileReferencePatterns() []ReferencePattern {
	patterns := make([]ReferencePattern, 0, len(referenceAlternatives))
	for _, alt := range referenceAlternatives {
		p, err := NewReferencePattern(alt.name, alt.expr)
		if err != nil {
			panic(err)
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// DefaultReferencePatterns returns the built-in alternatives in priority
// order. The compiled patterns are shared and safe for concurrent use.
func DefaultReferencePatterns() []ReferencePattern {
	out := make([]ReferencePattern, len(defaultReferencePatterns))
	copy(out, defaultReferencePatterns)
	return out
}

// FindReferenceNumber scans rows top to bottom. For each row the present
// cells are joined with spaces and the alternatives are tried in order; the
// first row with any match decides the result. A pattern that fails on a row
// is skipped; its first error is returned only when nothing matched.
func FindReferenceNumber(rows [][]Cell, patterns []ReferencePattern) (string, bool, error) {
	var firstErr error
	for _, row := range rows {
		text := rowText(row)
		if text == "" {
			continue
		}
		for _, p := range patterns {
			match, ok, err := p.Find(text)
			if err != nil {
				// A failing pattern only loses this row; later rows and
				// patterns still get their turn.
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				return match, true, nil
			}
		}
	}
	return "", false, firstErr
}
