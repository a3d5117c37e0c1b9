// Package vocab loads the term vocabulary and compiles match patterns.
package vocab

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ErrMalformedVocabulary indicates the vocabulary file cannot be used.
// This is always fatal: no extraction can run without a vocabulary.
var ErrMalformedVocabulary = errors.New("malformed vocabulary")

// MaxLineCapacity is the maximum buffer size for reading vocabulary
// lines (1MB per line).
const MaxLineCapacity = 1024 * 1024

// recordIDPattern extracts a record identifier from an "abs/<id>" URL.
var recordIDPattern = regexp.MustCompile(`abs/([^/?#]+)`)

// Term is a single vocabulary entry. Terms are immutable once loaded.
type Term struct {
	ID        string   `json:"term_id"`
	Name      string   `json:"term_name"`
	MatchName string   `json:"match_name"`
	Records   []string `json:"records,omitempty"`
}

// entry is the on-disk shape of one vocabulary line. The record-identifier
// fields come from ontology exports where curators sometimes store a URL
// instead of a bare identifier, a single string instead of a list, or the
// JSON literal false for "none known".
type entry struct {
	TermID      string     `json:"term_id"`
	Title       string     `json:"title"`
	Positive    recordList `json:"positive_bibcodes"`
	UsedIn      recordList `json:"used_in"`
	DescribedIn recordList `json:"described_in"`
	CitedIn     recordList `json:"cited_in"`
}

// recordList tolerates the vocabulary's loose field typing: a list of
// strings, a single string, null, or false all decode without error.
type recordList []string

func (l *recordList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "false" || trimmed == "true":
		*l = nil
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = recordList{s}
		return nil
	default:
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = recordList(items)
		return nil
	}
}

// LoadTerms reads a JSONL vocabulary file. Each line carries term_id,
// title, and the known-occurrence record identifier fields. Missing
// required fields and duplicate term IDs are rejected, not silently
// repaired: a bad vocabulary aborts the whole run.
func LoadTerms(path string) ([]Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrMalformedVocabulary, path, err)
	}
	defer f.Close()

	var terms []Term
	seen := make(map[string]int)

	scanner := bufio.NewScanner(f)
	buf := make([]byte, MaxLineCapacity)
	scanner.Buffer(buf, MaxLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedVocabulary, lineNum, err)
		}
		if e.TermID == "" {
			return nil, fmt.Errorf("%w: line %d: missing term_id", ErrMalformedVocabulary, lineNum)
		}
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("%w: line %d: term %s has no title", ErrMalformedVocabulary, lineNum, e.TermID)
		}
		if prev, dup := seen[e.TermID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate term_id %s (first seen line %d)", ErrMalformedVocabulary, lineNum, e.TermID, prev)
		}
		seen[e.TermID] = lineNum

		matchName := NormalizeName(e.Title)
		if matchName == "" {
			return nil, fmt.Errorf("%w: line %d: term %s normalizes to an empty match name", ErrMalformedVocabulary, lineNum, e.TermID)
		}

		terms = append(terms, Term{
			ID:        e.TermID,
			Name:      e.Title,
			MatchName: matchName,
			Records:   collectRecords(e),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformedVocabulary, path, err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: %s contains no terms", ErrMalformedVocabulary, path)
	}

	return terms, nil
}

// NormalizeName isolates the software name from a longer display label.
// Vocabulary titles follow the "Name: one-line description" convention.
func NormalizeName(title string) string {
	name := title
	if idx := strings.Index(title, ":"); idx >= 0 {
		name = title[:idx]
	}
	return strings.TrimSpace(name)
}

// ExtractRecordID returns the record identifier from an entry that may be
// a bare ID or an "abs/<id>" URL.
func ExtractRecordID(s string) string {
	if strings.Contains(s, "abs/") {
		if m := recordIDPattern.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return s
}

// collectRecords gathers the deduplicated, sorted record identifiers
// referenced by a vocabulary entry across all occurrence fields.
func collectRecords(e entry) []string {
	set := make(map[string]struct{})
	for _, list := range []recordList{e.Positive, e.UsedIn, e.DescribedIn, e.CitedIn} {
		for _, raw := range list {
			if id := ExtractRecordID(raw); id != "" {
				set[id] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UniqueRecords returns the deduplicated union of record identifiers
// across all terms.
func UniqueRecords(terms []Term) []string {
	set := make(map[string]struct{})
	for _, t := range terms {
		for _, id := range t.Records {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
