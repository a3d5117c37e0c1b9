// Package corpus reads literature records from byte-addressed JSONL
// corpus files.
package corpus

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Text is a JSON field that corpus producers encode inconsistently: a
// string, an array of strings, or null. Arrays are joined with spaces.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "false":
		*t = ""
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	case strings.HasPrefix(trimmed, "["):
		var parts []Text
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		nonEmpty := make([]string, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				nonEmpty = append(nonEmpty, string(p))
			}
		}
		*t = Text(strings.Join(nonEmpty, " "))
		return nil
	default:
		// Numbers and other scalars become their literal text.
		*t = Text(trimmed)
		return nil
	}
}

// Record is one literature document with the structured text sections the
// matcher scans.
type Record struct {
	Bibcode  string `json:"bibcode"`
	Title    Text   `json:"title"`
	Abstract Text   `json:"abstract"`
	Body     Text   `json:"body"`
}

// ParseRecord decodes a record from the byte span read out of a corpus
// file.
func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return &r, nil
}
