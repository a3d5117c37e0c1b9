// Package mention defines the extracted software-mention dataset schema.
package mention

// Match locations, in priority order: a term seen in the title is
// reported as a title mention even if it also appears in later sections.
const (
	LocationTitle    = "title"
	LocationAbstract = "abstract"
	LocationBody     = "body"
)

// MatchRecord is one (term, record) occurrence. A term appearing several
// times in a record still yields exactly one MatchRecord; MatchCount and
// the location booleans summarize the occurrences.
type MatchRecord struct {
	TermID        string `json:"term_id" parquet:"term_id,snappy"`
	TermName      string `json:"term_name" parquet:"term_name,snappy"`
	RecordID      string `json:"record_id" parquet:"record_id,snappy"`
	Title         string `json:"title" parquet:"title,snappy"`
	Abstract      string `json:"abstract" parquet:"abstract,snappy"`
	Context       string `json:"context" parquet:"context,snappy"`
	MatchCount    int32  `json:"match_count" parquet:"match_count"`
	InTitle       bool   `json:"in_title" parquet:"in_title"`
	InAbstract    bool   `json:"in_abstract" parquet:"in_abstract"`
	MatchLocation string `json:"match_location" parquet:"match_location,snappy"`
}

// Key returns the (term_id, record_id) pair used for uniqueness checks.
func (r MatchRecord) Key() string {
	return r.TermID + "\x00" + r.RecordID
}
