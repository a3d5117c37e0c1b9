package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	aggVerify bool
	aggExport string
)

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().BoolVar(&aggVerify, "verify", false, "Verify cross-shard uniqueness of (term, record) pairs")
	aggregateCmd.Flags().StringVar(&aggExport, "export", "", "Export selection: none, combined, per-term, or all (default from config)")
	aggregateCmd.Flags().String("work-dir", "", "Work directory holding the shards")
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Merge extraction shards into the final dataset",
	Long: `Merge the match shards of all completed work units into a single
Parquet dataset, write summary statistics, and produce the configured
CSV exports. Corrupt shards are excluded and reported.`,
	RunE: runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)
	applyExportFlag(cfg, aggExport)
	log := newLogger()

	cp := mustOpenCheckpoint(cfg)
	out := doAggregate(cfg, cp, aggVerify, log)
	if err := cp.Finalize(); err != nil {
		exitWithError(ExitError, "finalizing checkpoint: %v", err)
	}

	if humanOutput {
		outputHuman("Dataset: %s (%d rows from %d shards)\n", out.Dataset, out.Rows, out.ShardsMerged)
		for _, s := range out.ExcludedShards {
			outputHuman("excluded shard: %s\n", s)
		}
		for _, e := range out.Exports {
			outputHuman("wrote %s\n", e)
		}
	} else {
		outputJSON(out)
	}

	if len(out.ExcludedShards) > 0 {
		os.Exit(ExitPartial)
	}
	return nil
}
