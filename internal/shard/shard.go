// Package shard writes and reads per-worker output shards. A shard is an
// append-only JSONL file owned by exactly one worker; it becomes visible
// under its final name only after a successful flush and rename, so a
// crash mid-write never leaves a shard the aggregator would trust.
package shard

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/smx/internal/mention"
)

// ErrShardCorrupt marks a shard that cannot be read back in full. The
// aggregator excludes such shards instead of aborting the merge.
var ErrShardCorrupt = errors.New("shard corrupt")

// maxLineCapacity bounds shard line reads (4MB per record: two context
// windows plus title and abstract fit comfortably).
const maxLineCapacity = 4 * 1024 * 1024

// DefaultMaxRecords is the rotation threshold when none is configured.
const DefaultMaxRecords = 50000

// Writer appends match records for one work unit, rotating to a new
// shard file at the record threshold to bound memory and enable
// incremental flushing.
type Writer struct {
	dir        string
	unitID     string
	maxRecords int

	seq       int
	f         *os.File
	bw        *bufio.Writer
	count     int
	finalized []string
}

// NewWriter creates a shard writer for the given work unit.
func NewWriter(dir, unitID string, maxRecords int) *Writer {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Writer{dir: dir, unitID: unitID, maxRecords: maxRecords}
}

func (w *Writer) shardName() string {
	return fmt.Sprintf("%s_%03d.jsonl", w.unitID, w.seq)
}

func (w *Writer) open() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("creating shard dir: %w", err)
	}
	f, err := os.Create(filepath.Join(w.dir, w.shardName()+".tmp"))
	if err != nil {
		return fmt.Errorf("creating shard: %w", err)
	}
	w.f = f
	w.bw = bufio.NewWriter(f)
	w.count = 0
	return nil
}

// Append writes one record, rotating first if the current shard is full.
func (w *Writer) Append(rec mention.MatchRecord) error {
	if w.f == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if w.count >= w.maxRecords {
		if err := w.finalizeCurrent(); err != nil {
			return err
		}
		w.seq++
		if err := w.open(); err != nil {
			return err
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding match record: %w", err)
	}
	if _, err := w.bw.Write(data); err != nil {
		return fmt.Errorf("writing shard record: %w", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing shard newline: %w", err)
	}
	w.count++
	return nil
}

func (w *Writer) finalizeCurrent() error {
	if w.f == nil {
		return nil
	}
	name := w.shardName()
	tmpPath := filepath.Join(w.dir, name+".tmp")

	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing shard %s: %w", name, err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing shard %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(w.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing shard %s: %w", name, err)
	}

	w.f = nil
	w.bw = nil
	w.finalized = append(w.finalized, name)
	return nil
}

// Close finalizes the current shard and returns the names of every shard
// this writer produced, relative to the shard directory.
func (w *Writer) Close() ([]string, error) {
	if err := w.finalizeCurrent(); err != nil {
		return nil, err
	}
	return w.finalized, nil
}

// Abort discards the in-progress shard. Already-finalized shards are left
// in place; the checkpoint simply never references them for a failed unit.
func (w *Writer) Abort() {
	if w.f == nil {
		return
	}
	w.f.Close()
	os.Remove(filepath.Join(w.dir, w.shardName()+".tmp"))
	w.f = nil
	w.bw = nil
}

// ReadAll reads every record from a finalized shard. Any undecodable line
// marks the whole shard corrupt: partially trusted shards are worse than
// excluded ones.
func ReadAll(path string) ([]mention.MatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrShardCorrupt, filepath.Base(path), err)
	}
	defer f.Close()

	var records []mention.MatchRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec mention.MatchRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrShardCorrupt, filepath.Base(path), lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrShardCorrupt, filepath.Base(path), err)
	}
	return records, nil
}
