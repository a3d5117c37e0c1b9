package main

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/checkpoint"
	"github.com/matsen/smx/internal/plan"
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("work-dir", "", "Work directory holding the checkpoint")
}

// StatusResponse is the response for the status command.
type StatusResponse struct {
	Phase          string         `json:"phase"`
	StartedAt      time.Time      `json:"started_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty"`
	Units          map[string]int `json:"units,omitempty"`
	Failed         []string       `json:"failed_units,omitempty"`
	SkippedRecords int            `json:"skipped_records,omitempty"`
	SkipReasons    map[string]int `json:"skip_reasons,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current run",
	Long: `Report the run phase and per-unit progress from the checkpoint in the
work directory.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)

	path := filepath.Join(cfg.WorkDir, checkpoint.FileName)
	if _, err := os.Stat(path); err != nil {
		if _, err := os.Stat(path + ".done"); err == nil {
			return printStatus(StatusResponse{Phase: "complete"})
		}
		return printStatus(StatusResponse{Phase: "not started"})
	}

	cp, err := checkpoint.Open(cfg.WorkDir)
	if err != nil {
		exitWithError(ExitError, "opening checkpoint: %v", err)
	}
	snap := cp.Snapshot()

	resp := StatusResponse{
		StartedAt: snap.StartedAt,
		UpdatedAt: snap.UpdatedAt,
		Units:     map[string]int{},
	}
	switch {
	case snap.AggregateDone:
		resp.Phase = "complete"
	case snap.ExtractDone:
		resp.Phase = "aggregating"
	case snap.PlanDone:
		resp.Phase = "extracting"
	default:
		resp.Phase = "planning"
	}

	for id, st := range snap.Units {
		resp.Units[st.Status]++
		if st.Status == checkpoint.StatusFailed {
			resp.Failed = append(resp.Failed, id)
		}
	}
	sort.Strings(resp.Failed)

	skipped, err := plan.LoadSkipped(cfg.PlanDir())
	if err != nil {
		exitWithError(ExitError, "loading skipped records: %v", err)
	}
	resp.SkippedRecords = len(skipped)
	resp.SkipReasons = plan.SkippedByReason(skipped)

	return printStatus(resp)
}

func printStatus(resp StatusResponse) error {
	if !humanOutput {
		return outputJSON(resp)
	}

	outputHuman("Phase: %s\n", resp.Phase)
	if !resp.UpdatedAt.IsZero() {
		outputHuman("Last update: %s\n", resp.UpdatedAt.Format(time.RFC3339))
	}
	if len(resp.Units) > 0 {
		outputHuman("Units:\n")
		for _, status := range []string{
			checkpoint.StatusSucceeded, checkpoint.StatusRunning,
			checkpoint.StatusRetrying, checkpoint.StatusFailed, checkpoint.StatusPending,
		} {
			if n := resp.Units[status]; n > 0 {
				outputHuman("  %s: %d\n", status, n)
			}
		}
	}
	for _, id := range resp.Failed {
		outputHuman("failed: %s\n", id)
	}
	if resp.SkippedRecords > 0 {
		outputHuman("Skipped records: %d\n", resp.SkippedRecords)
		reasons := make([]string, 0, len(resp.SkipReasons))
		for reason := range resp.SkipReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			outputHuman("  %s: %d\n", reason, resp.SkipReasons[reason])
		}
	}
	return nil
}
