// Package locate resolves record identifiers to physical corpus locations
// through a SQLite lookup index.
package locate

import (
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// insertBatchSize bounds the number of rows per INSERT transaction when
// staging identifiers for the bulk join.
const insertBatchSize = 10000

// Location resolves one record identifier to its byte range in a corpus
// file. Locations are immutable after creation.
type Location struct {
	RecordID   string `json:"record_id"`
	FilePath   string `json:"file_path"`
	ByteOffset int64  `json:"byte_offset"`
	ByteLength int64  `json:"byte_length"`
	Year       int    `json:"year,omitempty"`
}

// Skipped records a record identifier excluded from the run with the
// reason, so operators can audit resolution coverage.
type Skipped struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// Index wraps the SQLite location index.
type Index struct {
	db *sql.DB
}

// Open opens or creates a location index at the given path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening location index: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating location index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS record_lookup (
			record_id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			byte_offset INTEGER NOT NULL,
			byte_length INTEGER NOT NULL,
			year INTEGER
		);
	`
	_, err := db.Exec(schema)
	return err
}

// AddBatch inserts locations in a single transaction. An existing row for
// the same record identifier is replaced.
func (ix *Index) AddBatch(locs []Location) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO record_lookup (record_id, file_path, byte_offset, byte_length, year)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, loc := range locs {
		if _, err := stmt.Exec(loc.RecordID, loc.FilePath, loc.ByteOffset, loc.ByteLength, loc.Year); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %s: %w", loc.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing inserts: %w", err)
	}
	return nil
}

// Count returns the number of indexed records.
func (ix *Index) Count() (int64, error) {
	var n int64
	if err := ix.db.QueryRow("SELECT COUNT(*) FROM record_lookup").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting index rows: %w", err)
	}
	return n, nil
}

// ResolveBulk resolves record identifiers in a single batched pass: the
// identifiers are staged into a temp table and joined against the lookup
// table, avoiding one random-access query per record. Identifiers absent
// from the index come back in the skipped list, never as an error.
func (ix *Index) ResolveBulk(recordIDs []string) ([]Location, []Skipped, error) {
	ids := dedupeSorted(recordIDs)
	if len(ids) == 0 {
		return nil, nil, nil
	}

	if _, err := ix.db.Exec("CREATE TEMP TABLE IF NOT EXISTS wanted (record_id TEXT PRIMARY KEY)"); err != nil {
		return nil, nil, fmt.Errorf("creating temp table: %w", err)
	}
	defer ix.db.Exec("DROP TABLE IF EXISTS wanted")

	for start := 0; start < len(ids); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := ix.stageBatch(ids[start:end]); err != nil {
			return nil, nil, err
		}
	}

	rows, err := ix.db.Query(`
		SELECT w.record_id, l.file_path, l.byte_offset, l.byte_length, COALESCE(l.year, 0)
		FROM wanted w
		JOIN record_lookup l ON w.record_id = l.record_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("bulk join: %w", err)
	}
	defer rows.Close()

	resolved := make(map[string]struct{}, len(ids))
	var locs []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.RecordID, &loc.FilePath, &loc.ByteOffset, &loc.ByteLength, &loc.Year); err != nil {
			return nil, nil, fmt.Errorf("scanning join row: %w", err)
		}
		resolved[loc.RecordID] = struct{}{}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading join rows: %w", err)
	}

	var skipped []Skipped
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			skipped = append(skipped, Skipped{RecordID: id, Reason: "not in location index"})
		}
	}

	return locs, skipped, nil
}

func (ix *Index) stageBatch(ids []string) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stage transaction: %w", err)
	}
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO wanted VALUES (?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing stage insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			tx.Rollback()
			return fmt.Errorf("staging %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stage batch: %w", err)
	}
	return nil
}

func dedupeSorted(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
