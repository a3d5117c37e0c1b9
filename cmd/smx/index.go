package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/locate"
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexCheckCmd)

	indexBuildCmd.Flags().String("corpus", "", "Corpus root directory")
	indexBuildCmd.Flags().String("index", "", "Location index (SQLite) path to write")
	indexCheckCmd.Flags().String("index", "", "Location index (SQLite) path")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the record location index",
	Long:  `Commands for building and checking the SQLite record location index.`,
}

// IndexBuildResult is the response for index build command.
type IndexBuildResult struct {
	Status          string  `json:"status"`
	Files           int     `json:"files"`
	Records         int64   `json:"records"`
	SkippedLines    int64   `json:"skipped_lines"`
	DurationSeconds float64 `json:"duration_seconds"`
	Path            string  `json:"path"`
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the location index from the corpus",
	Long: `Scan every .jsonl file under the corpus directory and record each
record's byte offset and length. The resulting SQLite index is what the
planner resolves vocabulary records against.`,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)
	log := newLogger()
	start := time.Now()

	if cfg.CorpusDir == "" || cfg.LocationDB == "" {
		exitWithError(ExitConfigError, "index build needs --corpus and --index (or config equivalents)")
	}

	ix, err := locate.Open(cfg.LocationDB)
	if err != nil {
		exitWithError(ExitError, "opening index: %v", err)
	}
	defer ix.Close()

	stats, err := locate.BuildFromCorpus(ix, cfg.CorpusDir)
	if err != nil {
		exitWithError(ExitDataError, "building index: %v", err)
	}
	log.Info().Int("files", stats.Files).Int64("records", stats.Records).Msg("index built")

	if humanOutput {
		outputHuman("Indexed %d records from %d files in %s (%d lines skipped)\n",
			stats.Records, stats.Files, formatDuration(time.Since(start)), stats.Skipped)
	} else {
		outputJSON(IndexBuildResult{
			Status:          "complete",
			Files:           stats.Files,
			Records:         stats.Records,
			SkippedLines:    stats.Skipped,
			DurationSeconds: time.Since(start).Seconds(),
			Path:            cfg.LocationDB,
		})
	}
	return nil
}

// IndexCheckResult is the response for index check command.
type IndexCheckResult struct {
	Status  string `json:"status"`
	Records int64  `json:"records"`
	Path    string `json:"path"`
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the location index",
	RunE:  runIndexCheck,
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)

	if cfg.LocationDB == "" {
		exitWithError(ExitConfigError, "index check needs --index (or a config equivalent)")
	}

	ix, err := locate.Open(cfg.LocationDB)
	if err != nil {
		exitWithError(ExitDataError, "opening index: %v", err)
	}
	defer ix.Close()

	n, err := ix.Count()
	if err != nil {
		exitWithError(ExitDataError, "counting records: %v", err)
	}

	if humanOutput {
		outputHuman("%s: %d records\n", cfg.LocationDB, n)
	} else {
		outputJSON(IndexCheckResult{Status: "ok", Records: n, Path: cfg.LocationDB})
	}
	return nil
}
