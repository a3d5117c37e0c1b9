package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/matsen/smx/internal/locate"
)

func planFixtures(t *testing.T) (Options, int64) {
	t.Helper()
	dir := t.TempDir()

	vocabPath := filepath.Join(dir, "vocab.jsonl")
	vocabLine := `{"term_id":"ascl:1234.001","title":"ZEUS-2D: Magnetohydrodynamics code","positive_bibcodes":["r1","r2"]}` + "\n"
	if err := os.WriteFile(vocabPath, []byte(vocabLine), 0644); err != nil {
		t.Fatalf("Failed to write vocabulary: %v", err)
	}

	corpusDir := filepath.Join(dir, "corpus")
	if err := os.MkdirAll(corpusDir, 0755); err != nil {
		t.Fatalf("Failed to create corpus dir: %v", err)
	}
	first := `{"bibcode":"r1","title":"One","body":"ZEUS-2D ran"}`
	second := `{"bibcode":"r2","title":"Two","body":"ZEUS-2D again"}`
	content := first + "\n" + second + "\n"
	if err := os.WriteFile(filepath.Join(corpusDir, "a.jsonl"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write corpus file: %v", err)
	}

	indexPath := filepath.Join(dir, "locations.db")
	ix, err := locate.Open(indexPath)
	if err != nil {
		t.Fatalf("locate.Open() error = %v", err)
	}
	if _, err := locate.BuildFromCorpus(ix, corpusDir); err != nil {
		t.Fatalf("BuildFromCorpus() error = %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	return Options{
		VocabPath: vocabPath,
		IndexPath: indexPath,
		CorpusDir: corpusDir,
		PlanDir:   filepath.Join(dir, "plan"),
	}, int64(len(content))
}

func TestRun_WritesPlan(t *testing.T) {
	opts, corpusBytes := planFixtures(t)

	res, err := Run(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Terms != 1 || res.Resolved != 2 || res.Units != 1 || res.Locations != 2 {
		t.Errorf("Run() = %+v, want 1 term, 2 resolved, 1 unit, 2 locations", res)
	}
	if res.Bytes != corpusBytes {
		t.Errorf("Run() planned %d bytes, want %d (both records span the whole file)", res.Bytes, corpusBytes)
	}
	if !Exists(opts.PlanDir) {
		t.Fatal("Exists() = false after Run")
	}

	m, err := Load(opts.PlanDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Units) != 1 || len(m.Terms) != 1 {
		t.Errorf("Load() = %d units, %d terms; want 1, 1", len(m.Units), len(m.Terms))
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	opts, _ := planFixtures(t)
	opts.DryRun = true

	res, err := Run(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Units != 1 {
		t.Errorf("Run() units = %d, want 1", res.Units)
	}
	if Exists(opts.PlanDir) {
		t.Error("Exists() = true after dry run, want no plan written")
	}
}
