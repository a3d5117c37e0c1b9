package vocab

import (
	"fmt"
	"regexp"
)

// Matcher holds the compiled boundary-aware patterns for the full term
// set. A Matcher is immutable after Compile and safe to share across
// parallel workers without synchronization.
type Matcher struct {
	terms    []Term
	patterns []*regexp.Regexp
}

// Compile builds word-boundary, case-insensitive patterns for every term.
// Compilation is pure: the same term set always yields the same matcher.
func Compile(terms []Term) (*Matcher, error) {
	patterns := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		expr := `(?i)\b` + regexp.QuoteMeta(t.MatchName) + `\b`
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern for term %s: %w", t.ID, err)
		}
		patterns[i] = re
	}
	return &Matcher{terms: terms, patterns: patterns}, nil
}

// Len returns the number of terms in the matcher.
func (m *Matcher) Len() int { return len(m.terms) }

// Term returns the term at index i.
func (m *Matcher) Term(i int) Term { return m.terms[i] }

// Find scans text for term i. It returns the total occurrence count and
// the byte offset of the first occurrence (-1 when there is none).
func (m *Matcher) Find(i int, text string) (count int, first int) {
	if text == "" {
		return 0, -1
	}
	locs := m.patterns[i].FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return 0, -1
	}
	return len(locs), locs[0][0]
}
