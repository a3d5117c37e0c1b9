package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/engine"
	"github.com/matsen/smx/internal/plan"
)

var (
	runDryRun   bool
	runSkipPlan bool
	runPlanOnly bool
	runVerify   bool
	runExport   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate inputs and build the plan without writing anything")
	runCmd.Flags().BoolVar(&runSkipPlan, "skip-plan", false, "Reuse an existing plan instead of re-planning")
	runCmd.Flags().BoolVar(&runPlanOnly, "plan-only", false, "Stop after the planning phase")
	runCmd.Flags().BoolVar(&runVerify, "verify", false, "Verify cross-shard uniqueness during aggregation")
	runCmd.Flags().StringVar(&runExport, "export", "", "Export selection: none, combined, per-term, or all (default from config)")
	runCmd.Flags().String("vocab", "", "Vocabulary JSONL path")
	runCmd.Flags().String("index", "", "Location index (SQLite) path")
	runCmd.Flags().String("corpus", "", "Corpus root directory")
	runCmd.Flags().String("work-dir", "", "Work directory for plan, shards, and outputs")
	runCmd.Flags().Int("workers", 0, "Number of extraction workers")
}

// RunResponse is the response for the run command.
type RunResponse struct {
	Status          string           `json:"status"`
	Plan            *plan.Result     `json:"plan,omitempty"`
	Extract         *engine.Report   `json:"extract,omitempty"`
	Aggregate       *AggregateOutput `json:"aggregate,omitempty"`
	DurationSeconds float64          `json:"duration_seconds"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: plan, extract, aggregate",
	Long: `Run all three phases in sequence.

If a checkpoint from an interrupted run exists in the work directory,
completed work units are skipped and the run resumes where it stopped.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)
	applyExportFlag(cfg, runExport)
	log := newLogger()
	start := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp := RunResponse{Status: "complete"}

	if runDryRun {
		resp.Plan = doPlan(cfg, true, log)
		resp.Status = "validated"
		resp.DurationSeconds = time.Since(start).Seconds()
		return printRunResponse(resp, ExitSuccess)
	}

	cp := mustOpenCheckpoint(cfg)

	replan := !runSkipPlan
	if cp.Snapshot().PlanDone && plan.Exists(cfg.PlanDir()) && !cp.Snapshot().AggregateDone {
		// Resuming: the existing plan must stay fixed so unit IDs keep
		// matching the checkpoint.
		replan = false
		log.Info().Msg("resuming from checkpoint, keeping existing plan")
	}
	if replan {
		resp.Plan = doPlan(cfg, false, log)
		if err := cp.MarkPlanDone(); err != nil {
			exitWithError(ExitError, "updating checkpoint: %v", err)
		}
	} else if !plan.Exists(cfg.PlanDir()) {
		exitWithError(ExitDataError, "no plan found in %s", cfg.PlanDir())
	}

	if runPlanOnly {
		resp.Status = "planned"
		resp.DurationSeconds = time.Since(start).Seconds()
		return printRunResponse(resp, ExitSuccess)
	}

	report, incomplete := doExtract(ctx, cfg, cp, log)
	resp.Extract = report
	if incomplete {
		resp.Status = "incomplete"
		resp.DurationSeconds = time.Since(start).Seconds()
		return printRunResponse(resp, ExitIncomplete)
	}

	resp.Aggregate = doAggregate(cfg, cp, runVerify, log)
	if err := cp.Finalize(); err != nil {
		exitWithError(ExitError, "finalizing checkpoint: %v", err)
	}

	resp.DurationSeconds = time.Since(start).Seconds()

	code := ExitSuccess
	if report.Failed > 0 || len(resp.Aggregate.ExcludedShards) > 0 {
		resp.Status = "partial"
		code = ExitPartial
	}
	return printRunResponse(resp, code)
}

func printRunResponse(resp RunResponse, code int) error {
	if humanOutput {
		printRunHuman(resp)
	} else {
		outputJSON(resp)
	}
	if code != ExitSuccess {
		os.Exit(code)
	}
	return nil
}

func printRunHuman(resp RunResponse) {
	outputHuman("Run %s in %s\n", resp.Status, formatDuration(time.Duration(resp.DurationSeconds*float64(time.Second))))
	if resp.Plan != nil {
		outputHuman("\nPlan:\n")
		outputHuman("  Terms: %d\n", resp.Plan.Terms)
		outputHuman("  Records resolved: %d (%d skipped)\n", resp.Plan.Resolved, resp.Plan.SkippedRecords)
		outputHuman("  Work units: %d (%s)\n", resp.Plan.Units, formatBytes(resp.Plan.Bytes))
	}
	if resp.Extract != nil {
		outputHuman("\nExtract:\n")
		outputHuman("  Units: %d succeeded, %d failed, %d already complete\n",
			resp.Extract.Succeeded, resp.Extract.Failed, resp.Extract.SkippedComplete)
		outputHuman("  Records scanned: %d (%d parse failures)\n", resp.Extract.Records, resp.Extract.ParseFailures)
		outputHuman("  Matches: %d\n", resp.Extract.Matches)
		for _, id := range resp.Extract.FailedUnits {
			outputHuman("  failed: %s\n", id)
		}
	}
	if resp.Aggregate != nil {
		outputHuman("\nAggregate:\n")
		outputHuman("  Dataset: %s (%d rows from %d shards)\n",
			resp.Aggregate.Dataset, resp.Aggregate.Rows, resp.Aggregate.ShardsMerged)
		for _, s := range resp.Aggregate.ExcludedShards {
			outputHuman("  excluded shard: %s\n", s)
		}
		for _, e := range resp.Aggregate.Exports {
			outputHuman("  wrote %s\n", e)
		}
		if st := resp.Aggregate.Stats; st != nil {
			outputHuman("  Mentions: %d across %d terms and %d records\n",
				st.TotalMentions, st.UniqueTerms, st.UniqueRecords)
		}
	}
	fmt.Println()
}
