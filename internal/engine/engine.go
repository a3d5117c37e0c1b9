// Package engine runs the parallel extraction phase: a fixed pool of
// workers, each consuming whole work units, one sequential file pass per
// unit, shard output, retry-once failure handling, and checkpointed
// resume.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/matsen/smx/internal/checkpoint"
	"github.com/matsen/smx/internal/plan"
	"github.com/matsen/smx/internal/vocab"
)

// ErrExtractionIncomplete is returned when the failed-unit ratio exceeds
// the configured tolerance. The report lists the failing units for manual
// rerun.
var ErrExtractionIncomplete = errors.New("extraction incomplete")

// DefaultFailureTolerance is the failed-unit ratio above which the phase
// is reported incomplete.
const DefaultFailureTolerance = 0.05

// Config holds the engine's resource and behavior settings.
type Config struct {
	Workers         int
	CorpusDir       string
	ShardDir        string
	ContextRadius   int
	ShardMaxRecords int
	// FailureTolerance is the acceptable failed/attempted unit ratio.
	// Zero tolerates no failed units; a negative value selects
	// DefaultFailureTolerance.
	FailureTolerance float64
	// ReadBytesPerSec throttles each worker's reads; zero means unlimited.
	ReadBytesPerSec int
}

// Report summarizes the extraction phase for the operator.
type Report struct {
	Attempted       int      `json:"attempted"`
	Succeeded       int      `json:"succeeded"`
	Failed          int      `json:"failed"`
	SkippedComplete int      `json:"skipped_complete"`
	Records         int      `json:"records"`
	Matches         int      `json:"matches"`
	ParseFailures   int      `json:"parse_failures"`
	FailedUnits     []string `json:"failed_units,omitempty"`
}

// Run executes the extraction phase over the planned work units. Units
// already marked succeeded in the checkpoint are skipped, which makes an
// interrupted run resumable without processing any unit twice. Units that
// fail are retried once after the first pass; if the final failed ratio
// exceeds the tolerance the phase returns ErrExtractionIncomplete.
func Run(ctx context.Context, cfg Config, m *vocab.Matcher, units []plan.WorkUnit, cp *checkpoint.Store, log zerolog.Logger) (*Report, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	tolerance := cfg.FailureTolerance
	if tolerance < 0 {
		tolerance = DefaultFailureTolerance
	}

	report := &Report{}
	var pending []plan.WorkUnit
	for _, u := range units {
		if st, ok := cp.Unit(u.ID); ok && st.Status == checkpoint.StatusSucceeded {
			report.SkippedComplete++
			report.Matches += st.Matches
			report.Records += st.Records
			report.ParseFailures += st.ParseFailures
			continue
		}
		pending = append(pending, u)
	}
	report.Attempted = len(pending)
	if report.SkippedComplete > 0 {
		log.Info().Int("units", report.SkippedComplete).Msg("skipping already-completed work units")
	}

	p := &pool{cfg: cfg, matcher: m, cp: cp, report: report, log: log}

	// First pass over all pending units, then exactly one retry pass over
	// whatever failed.
	failed, err := p.runPass(ctx, pending, checkpoint.StatusRetrying)
	if err != nil {
		return report, err
	}
	if len(failed) > 0 {
		log.Warn().Int("units", len(failed)).Msg("retrying failed work units")
		failed, err = p.runPass(ctx, failed, checkpoint.StatusFailed)
		if err != nil {
			return report, err
		}
	}

	for _, u := range failed {
		report.Failed++
		report.FailedUnits = append(report.FailedUnits, u.ID)
	}
	sort.Strings(report.FailedUnits)
	report.Succeeded = report.Attempted - report.Failed

	if report.Attempted > 0 {
		ratio := float64(report.Failed) / float64(report.Attempted)
		if ratio > tolerance {
			return report, fmt.Errorf("%w: %d of %d work units failed (tolerance %.0f%%)",
				ErrExtractionIncomplete, report.Failed, report.Attempted, tolerance*100)
		}
	}

	if err := cp.MarkExtractDone(); err != nil {
		return report, err
	}
	return report, nil
}

// pool shares the run's immutable inputs and the mutex-guarded report
// between passes.
type pool struct {
	cfg     Config
	matcher *vocab.Matcher
	cp      *checkpoint.Store
	report  *Report
	log     zerolog.Logger
	mu      sync.Mutex
}

// runPass processes units with the configured worker count. Failed units
// are marked with failStatus in the checkpoint and returned for the
// caller to retry or report. Only checkpoint write failures and context
// cancellation abort a pass.
func (p *pool) runPass(ctx context.Context, units []plan.WorkUnit, failStatus string) ([]plan.WorkUnit, error) {
	if len(units) == 0 {
		return nil, nil
	}

	unitCh := make(chan plan.WorkUnit)
	var failedMu sync.Mutex
	var failed []plan.WorkUnit

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(unitCh)
		for _, u := range units {
			select {
			case unitCh <- u:
			case <-gctx.Done():
				// Best-effort abort: stop dispatching, let in-flight
				// units finish on their own.
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < p.cfg.Workers; w++ {
		g.Go(func() error {
			var limiter *rate.Limiter
			if p.cfg.ReadBytesPerSec > 0 {
				limiter = rate.NewLimiter(rate.Limit(p.cfg.ReadBytesPerSec), p.cfg.ReadBytesPerSec)
			}
			for unit := range unitCh {
				st, _ := p.cp.Unit(unit.ID)
				st.Status = checkpoint.StatusRunning
				st.Attempts++
				if err := p.cp.SetUnit(unit.ID, st); err != nil {
					return err
				}

				res, err := processUnit(ctx, p.cfg, p.matcher, unit, limiter)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					p.log.Warn().Str("unit", unit.ID).Str("file", unit.FilePath).Err(err).Msg("work unit failed")
					st.Status = failStatus
					st.Error = err.Error()
					if err := p.cp.SetUnit(unit.ID, st); err != nil {
						return err
					}
					failedMu.Lock()
					failed = append(failed, unit)
					failedMu.Unlock()
					continue
				}

				st.Status = checkpoint.StatusSucceeded
				st.Error = ""
				st.Shards = res.shards
				st.Records = res.records
				st.Matches = res.matches
				st.ParseFailures = res.parseFailures
				if err := p.cp.SetUnit(unit.ID, st); err != nil {
					return err
				}

				p.mu.Lock()
				p.report.Records += res.records
				p.report.Matches += res.matches
				p.report.ParseFailures += res.parseFailures
				p.mu.Unlock()

				p.log.Debug().Str("unit", unit.ID).Int("records", res.records).Int("matches", res.matches).Msg("work unit complete")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return failed, err
	}
	return failed, nil
}
