package main

import (
	"github.com/spf13/cobra"
)

var planDryRun bool

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "Validate inputs without writing the plan")
	planCmd.Flags().String("vocab", "", "Vocabulary JSONL path")
	planCmd.Flags().String("index", "", "Location index (SQLite) path")
	planCmd.Flags().String("corpus", "", "Corpus root directory")
	planCmd.Flags().String("work-dir", "", "Work directory for plan, shards, and outputs")
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build the extraction plan",
	Long: `Resolve the vocabulary's record identifiers against the location index
and partition the resulting corpus byte ranges into work units. The plan
is written to <work-dir>/plan/ for the extract phase.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)
	log := newLogger()

	res := doPlan(cfg, planDryRun, log)

	if !planDryRun {
		cp := mustOpenCheckpoint(cfg)
		if err := cp.MarkPlanDone(); err != nil {
			exitWithError(ExitError, "updating checkpoint: %v", err)
		}
	}

	if humanOutput {
		outputHuman("Plan: %d terms, %d records resolved (%d skipped), %d work units over %d locations (%s)\n",
			res.Terms, res.Resolved, res.SkippedRecords, res.Units, res.Locations, formatBytes(res.Bytes))
		if res.MissingFiles > 0 {
			outputHuman("Warning: %d planned corpus files are missing\n", res.MissingFiles)
		}
	} else {
		outputJSON(res)
	}
	return nil
}
