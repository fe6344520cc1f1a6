//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			file UNINDEXED,
			line UNINDEXED,
			timestamp UNINDEXED,
			text,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, file string, n NoteRow) error {
	_, err := tx.Exec(`INSERT INTO notes_fts (file, line, timestamp, text, tags) VALUES (?, ?, ?, ?, ?)`,
		file, n.Line, n.Timestamp, n.Text, strings.Join(n.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, file string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE file = ?`, file)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT file, line, timestamp, text,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 16)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
