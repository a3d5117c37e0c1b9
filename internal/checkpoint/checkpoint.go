// Package checkpoint persists run progress so every phase can resume
// after interruption without repeating completed work.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the checkpoint file inside the work directory.
const FileName = "checkpoint.json"

// doneSuffix is appended when the run completes, rotating the checkpoint
// out of the resume path while keeping it for inspection.
const doneSuffix = ".done"

// Work-unit states. The only legal transitions are
// pending -> running -> (succeeded | retrying -> (succeeded | failed)).
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusRetrying  = "retrying"
	StatusFailed    = "failed"
)

// UnitState is the durable status of one work unit.
type UnitState struct {
	Status        string   `json:"status"`
	Attempts      int      `json:"attempts"`
	Shards        []string `json:"shards,omitempty"`
	Records       int      `json:"records,omitempty"`
	Matches       int      `json:"matches,omitempty"`
	ParseFailures int      `json:"parse_failures,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Checkpoint is the process-wide run state.
type Checkpoint struct {
	Version       int                   `json:"version"`
	StartedAt     time.Time             `json:"started_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	PlanDone      bool                  `json:"plan_done"`
	ExtractDone   bool                  `json:"extract_done"`
	AggregateDone bool                  `json:"aggregate_done"`
	Units         map[string]*UnitState `json:"units"`
}

// Store serializes checkpoint updates from concurrent workers and writes
// every change atomically (temp file + rename).
type Store struct {
	mu   sync.Mutex
	path string
	cp   *Checkpoint
}

// Open loads the checkpoint from the work directory, or starts a fresh
// one if none exists.
func Open(workDir string) (*Store, error) {
	path := filepath.Join(workDir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading checkpoint: %w", err)
		}
		return &Store{path: path, cp: &Checkpoint{
			Version:   1,
			StartedAt: time.Now().UTC(),
			Units:     make(map[string]*UnitState),
		}}, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	if cp.Units == nil {
		cp.Units = make(map[string]*UnitState)
	}
	return &Store{path: path, cp: &cp}, nil
}

// Snapshot returns a copy of the current checkpoint.
func (s *Store) Snapshot() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *s.cp
	out.Units = make(map[string]*UnitState, len(s.cp.Units))
	for id, st := range s.cp.Units {
		c := *st
		c.Shards = append([]string(nil), st.Shards...)
		out.Units[id] = &c
	}
	return out
}

// Unit returns the state of one work unit.
func (s *Store) Unit(id string) (UnitState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cp.Units[id]
	if !ok {
		return UnitState{}, false
	}
	return *st, true
}

// SetUnit records a unit's state and persists the checkpoint.
func (s *Store) SetUnit(id string, st UnitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := st
	s.cp.Units[id] = &copied
	return s.save()
}

// MarkPlanDone records planner completion.
func (s *Store) MarkPlanDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp.PlanDone = true
	return s.save()
}

// MarkExtractDone records engine completion.
func (s *Store) MarkExtractDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp.ExtractDone = true
	return s.save()
}

// Finalize records aggregation completion and rotates the checkpoint file
// out of the resume path.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp.AggregateDone = true
	if err := s.save(); err != nil {
		return err
	}
	if err := os.Rename(s.path, s.path+doneSuffix); err != nil {
		return fmt.Errorf("rotating checkpoint: %w", err)
	}
	return nil
}

// save must be called with the mutex held.
func (s *Store) save() error {
	s.cp.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s.cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}
