package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/aggregate"
	"github.com/matsen/smx/internal/checkpoint"
	"github.com/matsen/smx/internal/config"
	"github.com/matsen/smx/internal/engine"
	"github.com/matsen/smx/internal/logging"
	"github.com/matsen/smx/internal/plan"
	"github.com/matsen/smx/internal/vocab"
)

// mustLoadConfig loads the config file, applies environment and flag
// overrides, and validates the result. Exits on any problem.
func mustLoadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	flags := cmd.Flags()
	if f := flags.Lookup("vocab"); f != nil && f.Changed {
		cfg.Vocabulary, _ = flags.GetString("vocab")
	}
	if f := flags.Lookup("index"); f != nil && f.Changed {
		cfg.LocationDB, _ = flags.GetString("index")
	}
	if f := flags.Lookup("corpus"); f != nil && f.Changed {
		cfg.CorpusDir, _ = flags.GetString("corpus")
	}
	if f := flags.Lookup("work-dir"); f != nil && f.Changed {
		cfg.WorkDir, _ = flags.GetString("work-dir")
	}
	if f := flags.Lookup("workers"); f != nil && f.Changed {
		cfg.Workers, _ = flags.GetInt("workers")
	}

	cfg.Vocabulary = config.ExpandTilde(cfg.Vocabulary)
	cfg.LocationDB = config.ExpandTilde(cfg.LocationDB)
	cfg.CorpusDir = config.ExpandTilde(cfg.CorpusDir)
	cfg.WorkDir = config.ExpandTilde(cfg.WorkDir)

	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// applyExportFlag maps an --export selector onto the config toggles.
func applyExportFlag(cfg *config.Config, sel string) {
	switch sel {
	case "":
		// keep config values
	case "none":
		cfg.Exports = config.ExportConfig{}
	case "combined":
		cfg.Exports = config.ExportConfig{CombinedCSV: true}
	case "per-term":
		cfg.Exports = config.ExportConfig{PerTermCSV: true}
	case "all":
		cfg.Exports = config.ExportConfig{CombinedCSV: true, PerTermCSV: true}
	default:
		exitWithError(ExitConfigError, "invalid --export %q (want none, combined, per-term, or all)", sel)
	}
}

// newLogger builds the run logger honoring the --verbose flag.
func newLogger() zerolog.Logger {
	return logging.New(verbose)
}

// mustOpenCheckpoint opens (or creates) the run checkpoint in the work directory.
func mustOpenCheckpoint(cfg *config.Config) *checkpoint.Store {
	cp, err := checkpoint.Open(cfg.WorkDir)
	if err != nil {
		exitWithError(ExitError, "opening checkpoint: %v", err)
	}
	return cp
}

// doPlan runs the planning phase. Exits on error; vocabulary problems are
// configuration errors, everything else a data error.
func doPlan(cfg *config.Config, dryRun bool, log zerolog.Logger) *plan.Result {
	if err := cfg.ValidateInputs(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	res, err := plan.Run(plan.Options{
		VocabPath: cfg.Vocabulary,
		IndexPath: cfg.LocationDB,
		CorpusDir: cfg.CorpusDir,
		PlanDir:   cfg.PlanDir(),
		DryRun:    dryRun,
	}, log)
	if err != nil {
		if errors.Is(err, vocab.ErrMalformedVocabulary) {
			exitWithError(ExitConfigError, "%v", err)
		}
		exitWithError(ExitDataError, "%v", err)
	}
	return res
}

// doExtract runs the extraction phase over the persisted plan. Exits on
// setup errors; returns the report and whether the phase ended incomplete
// (failed units above tolerance) so callers can pick the exit code.
func doExtract(ctx context.Context, cfg *config.Config, cp *checkpoint.Store, log zerolog.Logger) (*engine.Report, bool) {
	m, err := plan.Load(cfg.PlanDir())
	if err != nil {
		exitWithError(ExitDataError, "loading plan from %s: %v (run 'smx plan' first)", cfg.PlanDir(), err)
	}

	matcher, err := vocab.Compile(m.Terms)
	if err != nil {
		exitWithError(ExitConfigError, "compiling vocabulary: %v", err)
	}

	report, err := engine.Run(ctx, engine.Config{
		Workers:          cfg.Workers,
		CorpusDir:        cfg.CorpusDir,
		ShardDir:         cfg.ShardDir(),
		ContextRadius:    cfg.ContextRadius,
		ShardMaxRecords:  cfg.ShardMaxRecords,
		FailureTolerance: cfg.FailureTolerance,
		ReadBytesPerSec:  cfg.ReadRateMB * 1024 * 1024,
	}, matcher, m.Units, cp, log)
	if err != nil {
		if errors.Is(err, engine.ErrExtractionIncomplete) {
			return report, true
		}
		exitWithError(ExitError, "extraction: %v", err)
	}
	return report, false
}

// AggregateOutput is the aggregation section of command responses.
type AggregateOutput struct {
	*aggregate.Result
	Dataset string   `json:"dataset"`
	Exports []string `json:"exports,omitempty"`
}

// doAggregate merges the shards of all succeeded units into the Parquet
// dataset, writes summary statistics, and produces the configured CSV
// exports. Exits on error.
func doAggregate(cfg *config.Config, cp *checkpoint.Store, verify bool, log zerolog.Logger) *AggregateOutput {
	snap := cp.Snapshot()
	var shards []string
	for _, st := range snap.Units {
		if st.Status == checkpoint.StatusSucceeded {
			shards = append(shards, st.Shards...)
		}
	}
	if len(shards) == 0 {
		exitWithError(ExitDataError, "no completed shards to aggregate (run 'smx extract' first)")
	}

	res, err := aggregate.Merge(cfg.ShardDir(), shards, cfg.DatasetPath(), verify, log)
	if err != nil {
		exitWithError(ExitError, "merging shards: %v", err)
	}

	statsPath := filepath.Join(cfg.WorkDir, aggregate.StatsFile)
	if err := aggregate.WriteStats(statsPath, res.Stats); err != nil {
		exitWithError(ExitError, "writing statistics: %v", err)
	}

	out := &AggregateOutput{Result: res, Dataset: cfg.DatasetPath()}
	out.Exports = append(out.Exports, statsPath)

	if cfg.Exports.CombinedCSV || cfg.Exports.PerTermCSV {
		rows, err := aggregate.ReadDataset(cfg.DatasetPath())
		if err != nil {
			exitWithError(ExitError, "reading dataset for export: %v", err)
		}
		if cfg.Exports.CombinedCSV {
			path := filepath.Join(cfg.WorkDir, aggregate.CombinedCSVFile)
			if err := aggregate.ExportCombinedCSV(rows, path); err != nil {
				exitWithError(ExitError, "exporting combined CSV: %v", err)
			}
			out.Exports = append(out.Exports, path)
		}
		if cfg.Exports.PerTermCSV {
			dir := filepath.Join(cfg.WorkDir, aggregate.PerTermDir)
			files, err := aggregate.ExportPerTermCSV(rows, dir)
			if err != nil {
				exitWithError(ExitError, "exporting per-term CSVs: %v", err)
			}
			out.Exports = append(out.Exports, files...)
		}
	}

	return out
}
