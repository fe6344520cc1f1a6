//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	f := "nb_2024-01-01.tsv"
	if err := db.ReplacePartition(PartitionRow{File: f, Checksum: "f1", UpdatedAt: time.Now()},
		rows(f, "Jotter keeps powerful day partitions.")); err != nil {
		t.Fatalf("ReplacePartition: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].File != f {
		t.Errorf("file = %q", results[0].File)
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFTS5_ReplaceRemovesOldContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	f := "nb_2024-01-01.tsv"
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "1", UpdatedAt: now}, rows(f, "original text"))
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "2", UpdatedAt: now}, rows(f, "replacement text"))

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	f := "nb_2024-01-02.tsv"
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "g", UpdatedAt: time.Now()}, rows(f, "vanishing content"))
	_ = db.DeletePartition(f)

	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Error("deleted partition still in FTS index")
	}
}
