package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/checkpoint"
)

var extractResume bool

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().BoolVar(&extractResume, "resume", true, "Skip units the checkpoint records as succeeded")
	extractCmd.Flags().String("corpus", "", "Corpus root directory")
	extractCmd.Flags().String("work-dir", "", "Work directory holding the plan")
	extractCmd.Flags().Int("workers", 0, "Number of extraction workers")
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the extraction phase over an existing plan",
	Long: `Scan the planned corpus byte ranges for vocabulary mentions and write
match shards. Requires a plan built by 'smx plan' or 'smx run'.

Units already recorded as succeeded in the checkpoint are skipped, so an
interrupted extraction can be re-run and will resume.`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)
	log := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !extractResume {
		// Drop the unit history so every unit runs again. The plan on
		// disk is untouched.
		path := filepath.Join(cfg.WorkDir, checkpoint.FileName)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			exitWithError(ExitError, "resetting checkpoint: %v", err)
		}
	}

	cp := mustOpenCheckpoint(cfg)
	if !extractResume {
		if err := cp.MarkPlanDone(); err != nil {
			exitWithError(ExitError, "updating checkpoint: %v", err)
		}
	}
	report, incomplete := doExtract(ctx, cfg, cp, log)

	if humanOutput {
		outputHuman("Extract: %d succeeded, %d failed, %d already complete\n",
			report.Succeeded, report.Failed, report.SkippedComplete)
		outputHuman("Records scanned: %d (%d parse failures), matches: %d\n",
			report.Records, report.ParseFailures, report.Matches)
		for _, id := range report.FailedUnits {
			outputHuman("failed: %s\n", id)
		}
	} else {
		outputJSON(report)
	}

	if incomplete {
		os.Exit(ExitIncomplete)
	}
	if report.Failed > 0 {
		os.Exit(ExitPartial)
	}
	return nil
}
