// Package main provides the smx CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// verbose enables debug-level logging
var verbose bool

// configPath overrides the default config file location
var configPath string

func main() {
	// A .env file can carry SMX_* path overrides; absence is fine.
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smx",
	Short: "Software mention extraction over literature corpora",
	Long: `smx scans full-text literature corpora for mentions of vocabulary terms.

A run has three phases: plan (resolve which corpus byte ranges hold the
vocabulary's records and partition them into work units), extract (scan
the ranges in parallel and write match shards), and aggregate (merge the
shards into one Parquet dataset with CSV exports and summary statistics).
Interrupted runs resume from a checkpoint. All commands output JSON by
default for easy integration with driver scripts and other tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default smx.yml if present)")
	rootCmd.Version = Version
}
