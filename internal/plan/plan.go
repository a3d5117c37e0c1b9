// Package plan turns resolved record locations into a partitioned,
// I/O-ordered work manifest for the extraction engine.
package plan

import (
	"fmt"
	"sort"

	"github.com/matsen/smx/internal/locate"
)

// WorkUnit is the unit of parallel assignment: one corpus file plus the
// record locations inside it, sorted ascending by byte offset. Within a
// unit offsets are strictly increasing and non-overlapping, which is what
// permits a single sequential forward read pass per file. WorkUnits are
// created once here and read-only thereafter.
type WorkUnit struct {
	ID        string            `json:"id"`
	FilePath  string            `json:"file_path"`
	ByteSpan  int64             `json:"byte_span"`
	Locations []locate.Location `json:"locations"`
}

// BuildWorkUnits groups locations by file, orders each group by ascending
// byte offset, and orders the units themselves by descending total byte
// span so the largest files are scheduled first and never become the last
// straggler.
//
// A record identifier resolving to more than one location (duplicate
// ingestion) is deduplicated here, keeping the first location by
// (file_path, byte_offset); locations whose byte ranges overlap a
// preceding range in the same file are likewise excluded. Both cases are
// reported in the skipped list.
func BuildWorkUnits(locs []locate.Location) ([]WorkUnit, []locate.Skipped) {
	sorted := make([]locate.Location, len(locs))
	copy(sorted, locs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FilePath != sorted[j].FilePath {
			return sorted[i].FilePath < sorted[j].FilePath
		}
		if sorted[i].ByteOffset != sorted[j].ByteOffset {
			return sorted[i].ByteOffset < sorted[j].ByteOffset
		}
		return sorted[i].RecordID < sorted[j].RecordID
	})

	var skipped []locate.Skipped
	seen := make(map[string]struct{}, len(sorted))
	groups := make(map[string][]locate.Location)
	var order []string

	for _, loc := range sorted {
		if _, dup := seen[loc.RecordID]; dup {
			skipped = append(skipped, locate.Skipped{RecordID: loc.RecordID, Reason: "duplicate location"})
			continue
		}

		group := groups[loc.FilePath]
		if n := len(group); n > 0 {
			prev := group[n-1]
			if loc.ByteOffset < prev.ByteOffset+prev.ByteLength {
				skipped = append(skipped, locate.Skipped{RecordID: loc.RecordID, Reason: "overlapping byte range"})
				continue
			}
		}

		seen[loc.RecordID] = struct{}{}
		if len(group) == 0 {
			order = append(order, loc.FilePath)
		}
		groups[loc.FilePath] = append(group, loc)
	}

	units := make([]WorkUnit, 0, len(order))
	for _, file := range order {
		group := groups[file]
		var span int64
		for _, loc := range group {
			span += loc.ByteLength
		}
		units = append(units, WorkUnit{
			FilePath:  file,
			ByteSpan:  span,
			Locations: group,
		})
	}

	// Largest units first; file path breaks ties so the order is stable.
	sort.Slice(units, func(i, j int) bool {
		if units[i].ByteSpan != units[j].ByteSpan {
			return units[i].ByteSpan > units[j].ByteSpan
		}
		return units[i].FilePath < units[j].FilePath
	})
	for i := range units {
		units[i].ID = fmt.Sprintf("u%04d", i+1)
	}

	return units, skipped
}
