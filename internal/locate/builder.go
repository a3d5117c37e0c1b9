package locate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BuildStats summarizes an index build.
type BuildStats struct {
	Files   int   `json:"files"`
	Records int64 `json:"records"`
	Skipped int64 `json:"skipped_lines"`
}

// recordID is the minimal projection of a corpus line needed for indexing.
type recordID struct {
	Bibcode string `json:"bibcode"`
}

// BuildFromCorpus scans every .jsonl file under corpusDir and indexes each
// record's byte range. File paths are stored relative to corpusDir so the
// index stays valid when the corpus is mounted elsewhere. Lines that fail
// to parse or carry no identifier are counted and skipped.
func BuildFromCorpus(ix *Index, corpusDir string) (*BuildStats, error) {
	files, err := corpusFiles(corpusDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .jsonl files under %s", corpusDir)
	}

	stats := &BuildStats{}
	for _, rel := range files {
		n, skipped, err := indexFile(ix, corpusDir, rel)
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", rel, err)
		}
		stats.Files++
		stats.Records += n
		stats.Skipped += skipped
	}
	return stats, nil
}

// corpusFiles lists .jsonl files under dir, relative to dir, sorted.
func corpusFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func indexFile(ix *Index, corpusDir, rel string) (int64, int64, error) {
	f, err := os.Open(filepath.Join(corpusDir, rel))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var (
		batch   []Location
		records int64
		skipped int64
		offset  int64
	)

	// ReadBytes keeps the line terminator, so the stored byte length is
	// the exact span consumed from the file. A final line without a
	// trailing newline and CRLF-terminated corpora both index to spans
	// the extraction reader can replay byte for byte.
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return records, skipped, readErr
		}
		if len(line) > 0 {
			length := int64(len(line))

			var id recordID
			if err := json.Unmarshal(line, &id); err != nil || id.Bibcode == "" {
				skipped++
			} else {
				batch = append(batch, Location{
					RecordID:   id.Bibcode,
					FilePath:   rel,
					ByteOffset: offset,
					ByteLength: length,
				})
				records++
			}
			offset += length

			if len(batch) >= insertBatchSize {
				if err := ix.AddBatch(batch); err != nil {
					return records, skipped, err
				}
				batch = batch[:0]
			}
		}
		if readErr == io.EOF {
			break
		}
	}

	if len(batch) > 0 {
		if err := ix.AddBatch(batch); err != nil {
			return records, skipped, err
		}
	}
	return records, skipped, nil
}
