package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/aggregate"
	"github.com/matsen/smx/internal/mention"
)

var (
	searchLimit  int
	searchRecord string
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchRecord, "record", "", "Restrict results to one record identifier")
	searchCmd.Flags().String("work-dir", "", "Work directory holding the dataset")
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query   string                `json:"query"`
	Total   int                   `json:"total"`
	Results []mention.MatchRecord `json:"results"`
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Query the merged dataset for a term",
	Long: `Search the merged Parquet dataset for mentions of a term. The query
matches term identifiers exactly and term names case-insensitively as a
substring.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig(cmd)
	query := args[0]

	if _, err := os.Stat(cfg.DatasetPath()); err != nil {
		exitWithError(ExitDataError, "dataset not found at %s (run 'smx aggregate' first)", cfg.DatasetPath())
	}

	rows, err := aggregate.ReadDataset(cfg.DatasetPath())
	if err != nil {
		exitWithError(ExitDataError, "reading dataset: %v", err)
	}

	lowered := strings.ToLower(query)
	var hits []mention.MatchRecord
	total := 0
	for _, r := range rows {
		if r.TermID != query && !strings.Contains(strings.ToLower(r.TermName), lowered) {
			continue
		}
		if searchRecord != "" && r.RecordID != searchRecord {
			continue
		}
		total++
		if len(hits) < searchLimit {
			hits = append(hits, r)
		}
	}

	if humanOutput {
		outputHuman("%d mentions", total)
		if total > len(hits) {
			outputHuman(" (showing %d)", len(hits))
		}
		outputHuman("\n")
		for _, r := range hits {
			outputHuman("%s  %s  [%s x%d]\n", r.TermName, r.RecordID, r.MatchLocation, r.MatchCount)
			if r.Context != "" {
				outputHuman("  %s\n", truncateString(r.Context, 160))
			}
		}
	} else {
		outputJSON(SearchResponse{Query: query, Total: total, Results: hits})
	}
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
