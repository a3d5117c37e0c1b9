package plan

import (
	"testing"

	"github.com/matsen/smx/internal/locate"
	"github.com/matsen/smx/internal/vocab"
)

func TestBuildWorkUnits_GroupAndSort(t *testing.T) {
	locs := []locate.Location{
		{RecordID: "r3", FilePath: "b.jsonl", ByteOffset: 500, ByteLength: 100},
		{RecordID: "r1", FilePath: "a.jsonl", ByteOffset: 200, ByteLength: 50},
		{RecordID: "r2", FilePath: "b.jsonl", ByteOffset: 0, ByteLength: 400},
		{RecordID: "r4", FilePath: "a.jsonl", ByteOffset: 0, ByteLength: 100},
	}

	units, skipped := BuildWorkUnits(locs)
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v, want none", skipped)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}

	// b.jsonl has span 500, a.jsonl 150: largest first.
	if units[0].FilePath != "b.jsonl" || units[1].FilePath != "a.jsonl" {
		t.Errorf("unit order = %s, %s; want b.jsonl, a.jsonl", units[0].FilePath, units[1].FilePath)
	}
	if units[0].ByteSpan != 500 || units[1].ByteSpan != 150 {
		t.Errorf("byte spans = %d, %d; want 500, 150", units[0].ByteSpan, units[1].ByteSpan)
	}
	if units[0].ID != "u0001" || units[1].ID != "u0002" {
		t.Errorf("unit IDs = %s, %s; want u0001, u0002", units[0].ID, units[1].ID)
	}

	// Offsets within each unit strictly ascending.
	for _, u := range units {
		for i := 1; i < len(u.Locations); i++ {
			if u.Locations[i].ByteOffset <= u.Locations[i-1].ByteOffset {
				t.Errorf("unit %s offsets not strictly increasing: %d then %d",
					u.ID, u.Locations[i-1].ByteOffset, u.Locations[i].ByteOffset)
			}
		}
	}
}

func TestBuildWorkUnits_DuplicateRecordDeduplicated(t *testing.T) {
	// Same record ingested into two files: the first location by
	// (file_path, byte_offset) wins, deterministically.
	locs := []locate.Location{
		{RecordID: "r1", FilePath: "b.jsonl", ByteOffset: 0, ByteLength: 100},
		{RecordID: "r1", FilePath: "a.jsonl", ByteOffset: 50, ByteLength: 100},
	}

	units, skipped := BuildWorkUnits(locs)
	if len(skipped) != 1 || skipped[0].Reason != "duplicate location" {
		t.Fatalf("skipped = %v, want one duplicate-location entry", skipped)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].FilePath != "a.jsonl" {
		t.Errorf("kept location in %s, want a.jsonl (first by sort order)", units[0].FilePath)
	}
}

func TestBuildWorkUnits_OverlappingRangeSkipped(t *testing.T) {
	locs := []locate.Location{
		{RecordID: "r1", FilePath: "a.jsonl", ByteOffset: 0, ByteLength: 100},
		{RecordID: "r2", FilePath: "a.jsonl", ByteOffset: 50, ByteLength: 100},
		{RecordID: "r3", FilePath: "a.jsonl", ByteOffset: 100, ByteLength: 100},
	}

	units, skipped := BuildWorkUnits(locs)
	if len(skipped) != 1 || skipped[0].RecordID != "r2" {
		t.Fatalf("skipped = %v, want r2 (overlapping byte range)", skipped)
	}
	if len(units) != 1 || len(units[0].Locations) != 2 {
		t.Fatalf("units = %v, want one unit with two locations", units)
	}
}

func TestBuildWorkUnits_PartitionDisjointness(t *testing.T) {
	locs := []locate.Location{
		{RecordID: "r1", FilePath: "a.jsonl", ByteOffset: 0, ByteLength: 10},
		{RecordID: "r2", FilePath: "a.jsonl", ByteOffset: 10, ByteLength: 10},
		{RecordID: "r2", FilePath: "b.jsonl", ByteOffset: 0, ByteLength: 10},
		{RecordID: "r3", FilePath: "b.jsonl", ByteOffset: 10, ByteLength: 10},
	}

	units, _ := BuildWorkUnits(locs)
	seen := make(map[string]string)
	for _, u := range units {
		for _, loc := range u.Locations {
			if prev, dup := seen[loc.RecordID]; dup {
				t.Errorf("record %s appears in units %s and %s", loc.RecordID, prev, u.ID)
			}
			seen[loc.RecordID] = u.ID
		}
	}
}

func TestManifest_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	units := []WorkUnit{
		{ID: "u0001", FilePath: "b.jsonl", ByteSpan: 500, Locations: []locate.Location{
			{RecordID: "r2", FilePath: "b.jsonl", ByteOffset: 0, ByteLength: 400},
			{RecordID: "r3", FilePath: "b.jsonl", ByteOffset: 500, ByteLength: 100},
		}},
		{ID: "u0002", FilePath: "a.jsonl", ByteSpan: 100, Locations: []locate.Location{
			{RecordID: "r1", FilePath: "a.jsonl", ByteOffset: 0, ByteLength: 100},
		}},
	}
	terms := []vocab.Term{
		{ID: "t1", Name: "ZEUS-2D: MHD code", MatchName: "ZEUS-2D", Records: []string{"r1"}},
	}
	skipped := []locate.Skipped{{RecordID: "rX", Reason: "not in location index"}}

	if err := Save(dir, units, terms, skipped); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !Exists(dir) {
		t.Error("Exists() = false after Save")
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Units) != 2 || len(m.Terms) != 1 {
		t.Fatalf("Load() = %d units, %d terms; want 2, 1", len(m.Units), len(m.Terms))
	}
	if m.Units[0].ID != "u0001" || len(m.Units[0].Locations) != 2 {
		t.Errorf("unit 0 = %+v, want u0001 with 2 locations", m.Units[0])
	}
	if m.Terms[0].MatchName != "ZEUS-2D" {
		t.Errorf("term match name = %q, want ZEUS-2D", m.Terms[0].MatchName)
	}

	got, err := LoadSkipped(dir)
	if err != nil {
		t.Fatalf("LoadSkipped() error = %v", err)
	}
	if len(got) != 1 || got[0].RecordID != "rX" {
		t.Errorf("LoadSkipped() = %v, want one rX entry", got)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load() on empty dir succeeded, want error")
	}
}

func TestSkippedByReason(t *testing.T) {
	skipped := []locate.Skipped{
		{RecordID: "r1", Reason: "not in location index"},
		{RecordID: "r2", Reason: "duplicate location"},
		{RecordID: "r3", Reason: "not in location index"},
	}

	counts := SkippedByReason(skipped)
	if len(counts) != 2 {
		t.Fatalf("SkippedByReason() = %v, want 2 reasons", counts)
	}
	if counts["not in location index"] != 2 || counts["duplicate location"] != 1 {
		t.Errorf("SkippedByReason() = %v, want 2 unresolved and 1 duplicate", counts)
	}

	if got := SkippedByReason(nil); got != nil {
		t.Errorf("SkippedByReason(nil) = %v, want nil", got)
	}
}
