package plan

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/smx/internal/locate"
	"github.com/matsen/smx/internal/vocab"
)

// Plan directory layout. The manifest is the sole input contract to the
// extraction engine; terms travel with it so the engine never reopens the
// vocabulary source.
const (
	ManifestFile = "manifest.jsonl"
	TermsFile    = "terms.jsonl"
	SkippedFile  = "skipped.jsonl"
)

// maxManifestLineCapacity bounds manifest line reads. A work unit covering
// a very large corpus file can list tens of thousands of locations.
const maxManifestLineCapacity = 64 * 1024 * 1024

// Manifest is the planner's persisted deliverable.
type Manifest struct {
	Units []WorkUnit
	Terms []vocab.Term
}

// Save writes the plan directory: one work unit per manifest line, one
// term per terms line, one skipped record per skipped line.
func Save(dir string, units []WorkUnit, terms []vocab.Term, skipped []locate.Skipped) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating plan dir: %w", err)
	}

	if err := writeJSONL(filepath.Join(dir, ManifestFile), len(units), func(i int) any { return units[i] }); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, TermsFile), len(terms), func(i int) any { return terms[i] }); err != nil {
		return fmt.Errorf("writing terms: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, SkippedFile), len(skipped), func(i int) any { return skipped[i] }); err != nil {
		return fmt.Errorf("writing skipped records: %w", err)
	}
	return nil
}

// Load reads a plan directory written by Save.
func Load(dir string) (*Manifest, error) {
	var m Manifest

	err := readJSONL(filepath.Join(dir, ManifestFile), func(line []byte) error {
		var u WorkUnit
		if err := json.Unmarshal(line, &u); err != nil {
			return err
		}
		m.Units = append(m.Units, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	err = readJSONL(filepath.Join(dir, TermsFile), func(line []byte) error {
		var t vocab.Term
		if err := json.Unmarshal(line, &t); err != nil {
			return err
		}
		m.Terms = append(m.Terms, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading terms: %w", err)
	}

	if len(m.Units) == 0 {
		return nil, fmt.Errorf("plan at %s has no work units", dir)
	}
	if len(m.Terms) == 0 {
		return nil, fmt.Errorf("plan at %s has no terms", dir)
	}
	return &m, nil
}

// LoadSkipped reads the planner's skipped-record report.
func LoadSkipped(dir string) ([]locate.Skipped, error) {
	var skipped []locate.Skipped
	err := readJSONL(filepath.Join(dir, SkippedFile), func(line []byte) error {
		var s locate.Skipped
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		skipped = append(skipped, s)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading skipped records: %w", err)
	}
	return skipped, nil
}

// SkippedByReason groups a skipped-record report by reason.
func SkippedByReason(skipped []locate.Skipped) map[string]int {
	if len(skipped) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, s := range skipped {
		counts[s.Reason]++
	}
	return counts
}

// Exists reports whether a plan directory holds a manifest.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}

func writeJSONL(path string, n int, item func(int) any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		data, err := json.Marshal(item(i))
		if err != nil {
			return fmt.Errorf("encoding line %d: %w", i+1, err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readJSONL(path string, each func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxManifestLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := each(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}
