package shard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/smx/internal/mention"
)

func testRecord(i int) mention.MatchRecord {
	return mention.MatchRecord{
		TermID:        "t1",
		TermName:      "ZEUS-2D",
		RecordID:      fmt.Sprintf("rec-%03d", i),
		Context:       "the ZEUS-2D code was used",
		MatchCount:    1,
		MatchLocation: mention.LocationBody,
	}
}

func TestWriter_AppendAndClose(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "u0001", 0)

	for i := 0; i < 5; i++ {
		if err := w.Append(testRecord(i)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	shards, err := w.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(shards) != 1 {
		t.Fatalf("Close() returned %d shards, want 1", len(shards))
	}

	records, err := ReadAll(filepath.Join(dir, shards[0]))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("ReadAll() returned %d records, want 5", len(records))
	}
	if records[2].RecordID != "rec-002" {
		t.Errorf("records[2].RecordID = %q, want rec-002", records[2].RecordID)
	}
}

func TestWriter_Rotation(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "u0001", 3)

	for i := 0; i < 7; i++ {
		if err := w.Append(testRecord(i)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	shards, err := w.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(shards) != 3 {
		t.Fatalf("Close() returned %d shards, want 3 (3+3+1 records)", len(shards))
	}

	total := 0
	for _, name := range shards {
		records, err := ReadAll(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadAll(%s) error = %v", name, err)
		}
		total += len(records)
	}
	if total != 7 {
		t.Errorf("total records across shards = %d, want 7", total)
	}

	// No temp files may survive a clean Close.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s after Close", e.Name())
		}
	}
}

func TestWriter_CloseEmpty(t *testing.T) {
	w := NewWriter(t.TempDir(), "u0001", 0)
	shards, err := w.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(shards) != 0 {
		t.Errorf("Close() on empty writer returned %v, want no shards", shards)
	}
}

func TestWriter_AbortRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "u0001", 0)
	if err := w.Append(testRecord(0)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	w.Abort()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("shard dir has %d entries after Abort, want 0", len(entries))
	}
}

func TestReadAll_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "u0001_000.jsonl")
	content := `{"term_id":"t1","record_id":"r1"}` + "\n" + `{"term_id": broken` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write shard: %v", err)
	}

	_, err := ReadAll(path)
	if !errors.Is(err, ErrShardCorrupt) {
		t.Errorf("ReadAll() error = %v, want ErrShardCorrupt", err)
	}
}

func TestReadAll_Missing(t *testing.T) {
	_, err := ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	if !errors.Is(err, ErrShardCorrupt) {
		t.Errorf("ReadAll() error = %v, want ErrShardCorrupt", err)
	}
}
