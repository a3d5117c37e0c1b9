package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/matsen/smx/internal/mention"
)

// topTermsLimit caps the top-terms list in the summary.
const topTermsLimit = 20

// Stats are the summary statistics published alongside the dataset.
type Stats struct {
	TotalMentions  int            `json:"total_mentions"`
	UniqueTerms    int            `json:"unique_terms"`
	UniqueRecords  int            `json:"unique_records"`
	ByLocation     map[string]int `json:"mentions_by_location"`
	InTitle        int            `json:"mentions_in_title"`
	InAbstract     int            `json:"mentions_in_abstract"`
	TopTerms       []TermCount    `json:"top_terms_by_mentions"`
}

// TermCount is one entry of the top-terms list.
type TermCount struct {
	TermID   string `json:"term_id"`
	TermName string `json:"term_name"`
	Mentions int    `json:"mentions"`
}

type statsAccumulator struct {
	total      int
	byLocation map[string]int
	inTitle    int
	inAbstract int
	records    map[string]struct{}
	terms      map[string]*TermCount
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{
		byLocation: make(map[string]int),
		records:    make(map[string]struct{}),
		terms:      make(map[string]*TermCount),
	}
}

func (a *statsAccumulator) add(rec mention.MatchRecord) {
	a.total++
	a.byLocation[rec.MatchLocation]++
	if rec.InTitle {
		a.inTitle++
	}
	if rec.InAbstract {
		a.inAbstract++
	}
	a.records[rec.RecordID] = struct{}{}

	tc, ok := a.terms[rec.TermID]
	if !ok {
		tc = &TermCount{TermID: rec.TermID, TermName: rec.TermName}
		a.terms[rec.TermID] = tc
	}
	tc.Mentions++
}

func (a *statsAccumulator) finish() *Stats {
	top := make([]TermCount, 0, len(a.terms))
	for _, tc := range a.terms {
		top = append(top, *tc)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Mentions != top[j].Mentions {
			return top[i].Mentions > top[j].Mentions
		}
		return top[i].TermID < top[j].TermID
	})
	if len(top) > topTermsLimit {
		top = top[:topTermsLimit]
	}

	return &Stats{
		TotalMentions: a.total,
		UniqueTerms:   len(a.terms),
		UniqueRecords: len(a.records),
		ByLocation:    a.byLocation,
		InTitle:       a.inTitle,
		InAbstract:    a.inAbstract,
		TopTerms:      top,
	}
}

// WriteStats saves the summary statistics as indented JSON.
func WriteStats(path string, stats *Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary statistics: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing summary statistics: %w", err)
	}
	return nil
}
