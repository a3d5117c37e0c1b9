package aggregate

import (
	"compress/gzip"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/smx/internal/mention"
)

func readCSVGz(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening export: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("opening gzip stream: %v", err)
	}
	defer gz.Close()

	rows, err := csv.NewReader(gz).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	return rows
}

func TestExportCombinedCSV(t *testing.T) {
	rows := []mention.MatchRecord{
		rec("t1", "r1", mention.LocationBody, 2),
		rec("t2", "r2", mention.LocationTitle, 0),
	}
	outPath := filepath.Join(t.TempDir(), CombinedCSVFile)

	if err := ExportCombinedCSV(rows, outPath); err != nil {
		t.Fatalf("ExportCombinedCSV() error = %v", err)
	}

	got := readCSVGz(t, outPath)
	if len(got) != 3 {
		t.Fatalf("export has %d rows, want header + 2", len(got))
	}
	if got[0][0] != "term_id" || got[0][9] != "match_location" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][0] != "t1" || got[1][6] != "2" || got[1][9] != "body" {
		t.Errorf("row 1 = %v", got[1])
	}
	if got[2][7] != "true" {
		t.Errorf("row 2 in_title = %q, want true", got[2][7])
	}
}

func TestExportPerTermCSV(t *testing.T) {
	rows := []mention.MatchRecord{
		rec("ascl:1.1", "r1", mention.LocationBody, 1),
		rec("ascl:1.1", "r2", mention.LocationBody, 1),
		rec("ascl:2.2", "r3", mention.LocationBody, 1),
	}
	dir := filepath.Join(t.TempDir(), PerTermDir)

	files, err := ExportPerTermCSV(rows, dir)
	if err != nil {
		t.Fatalf("ExportPerTermCSV() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}

	// Term IDs with separators must be sanitized in file names.
	if files[0] != "term_ascl_1.1.csv.gz" {
		t.Errorf("files[0] = %q, want term_ascl_1.1.csv.gz", files[0])
	}

	got := readCSVGz(t, filepath.Join(dir, files[0]))
	if len(got) != 3 {
		t.Errorf("first term export has %d rows, want header + 2", len(got))
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ascl:1234.001", "ascl_1234.001"},
		{"a/b\\c d", "a_b_c_d"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := safeFileName(tt.in); got != tt.want {
			t.Errorf("safeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
