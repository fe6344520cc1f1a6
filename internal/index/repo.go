package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PartitionRow represents a row in the partitions table.
type PartitionRow struct {
	File      string
	Checksum  string
	UpdatedAt time.Time
}

// NoteRow is one indexed line of a partition file.
type NoteRow struct {
	File      string
	Line      int
	Timestamp string
	Text      string
	Tags      []string
}

// SearchResult represents one search hit.
type SearchResult struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	Snippet   string `json:"snippet"`
}

// Stats summarizes the index contents.
type Stats struct {
	Partitions int `json:"partitions"`
	Notes      int `json:"notes"`
}

// ReplacePartition swaps every indexed row of p.File for notes within a
// transaction.
func (db *DB) ReplacePartition(p PartitionRow, notes []NoteRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO partitions (file, checksum, note_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			checksum   = excluded.checksum,
			note_count = excluded.note_count,
			updated_at = excluded.updated_at
	`, p.File, p.Checksum, len(notes), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert partition: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM notes WHERE file = ?`, p.File); err != nil {
		return fmt.Errorf("index: clear notes: %w", err)
	}
	ftsDelete(tx, p.File)

	if len(notes) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO notes (file, line, timestamp, text, tags) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare note insert: %w", err)
		}
		defer stmt.Close()
		for _, n := range notes {
			tagsJSON, _ := json.Marshal(n.Tags)
			if _, err := stmt.Exec(p.File, n.Line, n.Timestamp, n.Text, string(tagsJSON)); err != nil {
				return fmt.Errorf("index: insert note: %w", err)
			}
			if err := ftsInsert(tx, p.File, n); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeletePartition removes a partition and all of its rows.
func (db *DB) DeletePartition(file string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, file)
	if _, err := tx.Exec(`DELETE FROM notes WHERE file = ?`, file); err != nil {
		return fmt.Errorf("index: delete notes: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM partitions WHERE file = ?`, file); err != nil {
		return fmt.Errorf("index: delete partition: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a partition, or empty string if
// it is not indexed.
func (db *DB) GetChecksum(file string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM partitions WHERE file = ?`, file).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns file → checksum for every indexed partition.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM partitions`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}

// Stats counts indexed partitions and notes.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`SELECT (SELECT count(*) FROM partitions), (SELECT count(*) FROM notes)`).
		Scan(&s.Partitions, &s.Notes)
	if err != nil {
		return s, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.File, &r.Line, &r.Timestamp, &r.Text, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
