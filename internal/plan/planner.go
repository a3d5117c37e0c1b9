package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/matsen/smx/internal/locate"
	"github.com/matsen/smx/internal/vocab"
)

// Options configure a planning run.
type Options struct {
	VocabPath string
	IndexPath string
	CorpusDir string
	PlanDir   string
	// DryRun performs every validation step without writing the plan.
	DryRun bool
}

// Result summarizes a planning run for the operator report.
type Result struct {
	Terms          int   `json:"terms"`
	UniqueRecords  int   `json:"unique_records"`
	Resolved       int   `json:"resolved"`
	SkippedRecords int   `json:"skipped_records"`
	Units          int   `json:"work_units"`
	Locations      int   `json:"locations"`
	Bytes          int64 `json:"bytes"`
	MissingFiles   int   `json:"missing_files,omitempty"`
}

// Run executes the planning phase: load and compile the vocabulary,
// bulk-resolve record locations, build work units, and persist the plan.
// Matcher compilation happens here even though the matcher is rebuilt at
// extraction time, so an uncompilable term fails the run before any work
// starts.
func Run(opts Options, log zerolog.Logger) (*Result, error) {
	terms, err := vocab.LoadTerms(opts.VocabPath)
	if err != nil {
		return nil, err
	}
	if _, err := vocab.Compile(terms); err != nil {
		return nil, fmt.Errorf("%w: %v", vocab.ErrMalformedVocabulary, err)
	}
	records := vocab.UniqueRecords(terms)
	log.Info().Int("terms", len(terms)).Int("unique_records", len(records)).Msg("vocabulary loaded")

	ix, err := locate.Open(opts.IndexPath)
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	resolved, skipped, err := ix.ResolveBulk(records)
	if err != nil {
		return nil, fmt.Errorf("resolving record locations: %w", err)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("no record could be resolved against %s", opts.IndexPath)
	}
	log.Info().Int("resolved", len(resolved)).Int("skipped", len(skipped)).Msg("locations resolved")

	units, dupes := BuildWorkUnits(resolved)
	skipped = append(skipped, dupes...)

	missing := 0
	var locations int
	var bytes int64
	for _, u := range units {
		locations += len(u.Locations)
		bytes += u.ByteSpan
		if _, err := os.Stat(filepath.Join(opts.CorpusDir, u.FilePath)); err != nil {
			missing++
			log.Warn().Str("file", u.FilePath).Msg("corpus file not found")
		}
	}
	if missing == len(units) {
		return nil, fmt.Errorf("none of the planned corpus files exist under %s", opts.CorpusDir)
	}

	res := &Result{
		Terms:          len(terms),
		UniqueRecords:  len(records),
		Resolved:       len(resolved),
		SkippedRecords: len(skipped),
		Units:          len(units),
		Locations:      locations,
		Bytes:          bytes,
		MissingFiles:   missing,
	}

	if opts.DryRun {
		log.Info().Msg("dry run: plan validated, nothing written")
		return res, nil
	}

	if err := Save(opts.PlanDir, units, terms, skipped); err != nil {
		return nil, err
	}
	log.Info().Int("units", len(units)).Str("dir", opts.PlanDir).Msg("plan written")
	return res, nil
}
