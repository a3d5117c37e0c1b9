package aggregate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/matsen/smx/internal/mention"
)

func writeShard(t *testing.T, dir, name string, records []mention.MatchRecord) {
	t.Helper()
	var buf []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshaling record: %v", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf, 0644); err != nil {
		t.Fatalf("writing shard: %v", err)
	}
}

func rec(termID, recordID, location string, count int) mention.MatchRecord {
	return mention.MatchRecord{
		TermID:        termID,
		TermName:      termID + " name",
		RecordID:      recordID,
		Context:       "some context around " + termID,
		MatchCount:    int32(count),
		InTitle:       location == mention.LocationTitle,
		InAbstract:    location == mention.LocationAbstract,
		MatchLocation: location,
	}
}

func sortedKeys(rows []mention.MatchRecord) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key()
	}
	sort.Strings(keys)
	return keys
}

func TestMerge_Basic(t *testing.T) {
	shardDir := t.TempDir()
	writeShard(t, shardDir, "u0001_000.jsonl", []mention.MatchRecord{
		rec("t1", "r1", mention.LocationBody, 2),
		rec("t2", "r1", mention.LocationTitle, 0),
	})
	writeShard(t, shardDir, "u0002_000.jsonl", []mention.MatchRecord{
		rec("t1", "r2", mention.LocationAbstract, 0),
	})

	outPath := filepath.Join(t.TempDir(), DatasetFile)
	res, err := Merge(shardDir, []string{"u0001_000.jsonl", "u0002_000.jsonl"}, outPath, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Rows != 3 || res.ShardsMerged != 2 || len(res.ExcludedShards) != 0 {
		t.Fatalf("result = %+v, want 3 rows from 2 shards", res)
	}

	rows, err := ReadDataset(outPath)
	if err != nil {
		t.Fatalf("ReadDataset() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("dataset has %d rows, want 3", len(rows))
	}

	stats := res.Stats
	if stats.TotalMentions != 3 || stats.UniqueTerms != 2 || stats.UniqueRecords != 2 {
		t.Errorf("stats = %+v, want 3 mentions, 2 terms, 2 records", stats)
	}
	if stats.ByLocation[mention.LocationBody] != 1 || stats.ByLocation[mention.LocationTitle] != 1 || stats.ByLocation[mention.LocationAbstract] != 1 {
		t.Errorf("ByLocation = %v", stats.ByLocation)
	}
}

func TestMerge_OrderIndependent(t *testing.T) {
	shardDir := t.TempDir()
	writeShard(t, shardDir, "a.jsonl", []mention.MatchRecord{rec("t1", "r1", mention.LocationBody, 1)})
	writeShard(t, shardDir, "b.jsonl", []mention.MatchRecord{rec("t1", "r2", mention.LocationBody, 1)})

	out1 := filepath.Join(t.TempDir(), "d1.parquet")
	out2 := filepath.Join(t.TempDir(), "d2.parquet")

	if _, err := Merge(shardDir, []string{"a.jsonl", "b.jsonl"}, out1, false, zerolog.Nop()); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if _, err := Merge(shardDir, []string{"b.jsonl", "a.jsonl"}, out2, false, zerolog.Nop()); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	rows1, err := ReadDataset(out1)
	if err != nil {
		t.Fatalf("ReadDataset() error = %v", err)
	}
	rows2, err := ReadDataset(out2)
	if err != nil {
		t.Fatalf("ReadDataset() error = %v", err)
	}

	k1, k2 := sortedKeys(rows1), sortedKeys(rows2)
	if len(k1) != len(k2) {
		t.Fatalf("row counts differ: %d vs %d", len(k1), len(k2))
	}
	for i := range k1 {
		if k1[i] != k2[i] {
			t.Errorf("row %d differs between merge orders: %q vs %q", i, k1[i], k2[i])
		}
	}
}

func TestMerge_CorruptShardExcluded(t *testing.T) {
	shardDir := t.TempDir()
	writeShard(t, shardDir, "good.jsonl", []mention.MatchRecord{rec("t1", "r1", mention.LocationBody, 1)})
	if err := os.WriteFile(filepath.Join(shardDir, "bad.jsonl"), []byte("{not json\n"), 0644); err != nil {
		t.Fatalf("writing corrupt shard: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), DatasetFile)
	res, err := Merge(shardDir, []string{"good.jsonl", "bad.jsonl"}, outPath, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Merge() error = %v, corrupt shards must not abort the merge", err)
	}
	if len(res.ExcludedShards) != 1 || res.ExcludedShards[0] != "bad.jsonl" {
		t.Errorf("ExcludedShards = %v, want [bad.jsonl]", res.ExcludedShards)
	}
	if res.Rows != 1 {
		t.Errorf("Rows = %d, want 1 from the good shard", res.Rows)
	}
}

func TestMerge_VerifyDetectsCrossShardDuplicate(t *testing.T) {
	shardDir := t.TempDir()
	writeShard(t, shardDir, "a.jsonl", []mention.MatchRecord{rec("t1", "r1", mention.LocationBody, 1)})
	writeShard(t, shardDir, "b.jsonl", []mention.MatchRecord{rec("t1", "r1", mention.LocationBody, 1)})

	outPath := filepath.Join(t.TempDir(), DatasetFile)
	if _, err := Merge(shardDir, []string{"a.jsonl", "b.jsonl"}, outPath, true, zerolog.Nop()); err == nil {
		t.Error("Merge() with cross-shard duplicate succeeded, want verify failure")
	}
}

func TestStats_TopTerms(t *testing.T) {
	acc := newStatsAccumulator()
	for i := 0; i < 5; i++ {
		acc.add(rec("popular", "r"+string(rune('a'+i)), mention.LocationBody, 1))
	}
	acc.add(rec("rare", "rx", mention.LocationBody, 1))

	stats := acc.finish()
	if len(stats.TopTerms) != 2 {
		t.Fatalf("TopTerms = %v, want 2 entries", stats.TopTerms)
	}
	if stats.TopTerms[0].TermID != "popular" || stats.TopTerms[0].Mentions != 5 {
		t.Errorf("TopTerms[0] = %+v, want popular with 5 mentions", stats.TopTerms[0])
	}
}

func TestWriteStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), StatsFile)
	stats := &Stats{TotalMentions: 1, UniqueTerms: 1, UniqueRecords: 1, ByLocation: map[string]int{"body": 1}}
	if err := WriteStats(path, stats); err != nil {
		t.Fatalf("WriteStats() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stats: %v", err)
	}
	var got Stats
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("parsing stats: %v", err)
	}
	if got.TotalMentions != 1 {
		t.Errorf("TotalMentions = %d, want 1", got.TotalMentions)
	}
}
