// Package aggregate merges extraction shards into the columnar results
// dataset and produces the flat exports and summary statistics.
package aggregate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/matsen/smx/internal/mention"
	"github.com/matsen/smx/internal/shard"
)

// DatasetFile is the merged Parquet dataset inside the work directory.
const DatasetFile = "mentions.parquet"

// Result summarizes a merge for the operator report. ExcludedShards is
// non-empty when corrupt shards were dropped; the run's exit status must
// reflect that.
type Result struct {
	Rows           int      `json:"rows"`
	ShardsMerged   int      `json:"shards_merged"`
	ExcludedShards []string `json:"excluded_shards,omitempty"`
	Stats          *Stats   `json:"stats"`
}

// Merge concatenates shard contents into one Parquet dataset. Shards are
// read in sorted-name order purely for reproducibility of row order; the
// dataset content does not depend on merge order. Each shard's
// (term_id, record_id) pairs are checked for uniqueness; with verify set
// the check extends across shards, asserting the partition-disjointness
// invariant that holds by construction.
func Merge(shardDir string, shards []string, outPath string, verify bool, log zerolog.Logger) (*Result, error) {
	ordered := append([]string(nil), shards...)
	sort.Strings(ordered)

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating dataset: %w", err)
	}
	w := parquet.NewGenericWriter[mention.MatchRecord](f)

	res := &Result{}
	acc := newStatsAccumulator()
	var crossShard map[string]string

	if verify {
		crossShard = make(map[string]string)
	}

	for _, name := range ordered {
		records, err := shard.ReadAll(filepath.Join(shardDir, name))
		if err != nil {
			log.Warn().Str("shard", name).Err(err).Msg("excluding corrupt shard")
			res.ExcludedShards = append(res.ExcludedShards, name)
			continue
		}

		inShard := make(map[string]struct{}, len(records))
		dup := false
		for _, rec := range records {
			key := rec.Key()
			if _, seen := inShard[key]; seen {
				log.Warn().Str("shard", name).Str("term", rec.TermID).Str("record", rec.RecordID).Msg("excluding shard with duplicate pair")
				dup = true
				break
			}
			inShard[key] = struct{}{}
		}
		if dup {
			res.ExcludedShards = append(res.ExcludedShards, name)
			continue
		}

		if verify {
			for _, rec := range records {
				if other, seen := crossShard[rec.Key()]; seen {
					f.Close()
					os.Remove(outPath)
					return nil, fmt.Errorf("partition violated: (%s, %s) in shards %s and %s",
						rec.TermID, rec.RecordID, other, name)
				}
				crossShard[rec.Key()] = name
			}
		}

		if len(records) > 0 {
			if _, err := w.Write(records); err != nil {
				f.Close()
				os.Remove(outPath)
				return nil, fmt.Errorf("writing dataset rows from %s: %w", name, err)
			}
		}
		for _, rec := range records {
			acc.add(rec)
		}
		res.Rows += len(records)
		res.ShardsMerged++
	}

	if err := w.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("closing dataset writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing dataset: %w", err)
	}

	res.Stats = acc.finish()
	return res, nil
}

// ReadDataset loads the merged dataset. Exports and the search command
// operate on the full dataset in memory, like the merge's consumers do.
func ReadDataset(path string) ([]mention.MatchRecord, error) {
	rows, err := parquet.ReadFile[mention.MatchRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	return rows, nil
}
