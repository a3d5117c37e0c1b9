package aggregate

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/matsen/smx/internal/mention"
)

// Export file names inside the work directory.
const (
	CombinedCSVFile = "mentions.csv.gz"
	PerTermDir      = "by_term"
	StatsFile       = "summary_statistics.json"
)

// csvHeader mirrors the MatchRecord schema column order.
var csvHeader = []string{
	"term_id", "term_name", "record_id", "title", "abstract",
	"context", "match_count", "in_title", "in_abstract", "match_location",
}

// ExportCombinedCSV writes the whole dataset to one gzip-compressed CSV.
func ExportCombinedCSV(rows []mention.MatchRecord, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating export: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := writeCSV(gz, rows); err != nil {
		gz.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(outPath), err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	return nil
}

// ExportPerTermCSV writes one gzip-compressed CSV per term under dir and
// returns the created file names.
func ExportPerTermCSV(rows []mention.MatchRecord, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating per-term export dir: %w", err)
	}

	byTerm := make(map[string][]mention.MatchRecord)
	for _, rec := range rows {
		byTerm[rec.TermID] = append(byTerm[rec.TermID], rec)
	}

	termIDs := make([]string, 0, len(byTerm))
	for id := range byTerm {
		termIDs = append(termIDs, id)
	}
	sort.Strings(termIDs)

	var files []string
	for _, id := range termIDs {
		name := fmt.Sprintf("term_%s.csv.gz", safeFileName(id))
		if err := ExportCombinedCSV(byTerm[id], filepath.Join(dir, name)); err != nil {
			return files, fmt.Errorf("exporting term %s: %w", id, err)
		}
		files = append(files, name)
	}
	return files, nil
}

func writeCSV(w *gzip.Writer, rows []mention.MatchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range rows {
		row := []string{
			rec.TermID,
			rec.TermName,
			rec.RecordID,
			rec.Title,
			rec.Abstract,
			rec.Context,
			strconv.Itoa(int(rec.MatchCount)),
			strconv.FormatBool(rec.InTitle),
			strconv.FormatBool(rec.InAbstract),
			rec.MatchLocation,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// safeFileName replaces path separators and other unfriendly characters
// in a term ID so it can name a file.
func safeFileName(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(id)
}
