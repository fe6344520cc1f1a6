package index

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "jotter-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rows(file string, texts ...string) []NoteRow {
	out := make([]NoteRow, len(texts))
	for i, s := range texts {
		out[i] = NoteRow{
			File:      file,
			Line:      i,
			Timestamp: time.Date(2024, 1, 1, 9, i, 0, 0, time.UTC).Format("2006-01-02T15:04:05.000000"),
			Text:      s,
			Tags:      []string{"t"},
		}
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM partitions`).Scan(&count); err != nil {
		t.Fatalf("partitions table missing: %v", err)
	}
}

func TestReplaceAndGetChecksum(t *testing.T) {
	db := testDB(t)
	p := PartitionRow{File: "nb_2024-01-01.tsv", Checksum: "abc123", UpdatedAt: time.Now()}
	if err := db.ReplacePartition(p, rows(p.File, "one", "two")); err != nil {
		t.Fatalf("ReplacePartition: %v", err)
	}
	cs, err := db.GetChecksum(p.File)
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
	st, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Partitions != 1 || st.Notes != 2 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestReplaceDropsOldRows(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	f := "nb_2024-01-01.tsv"
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "1", UpdatedAt: now}, rows(f, "a", "b", "c"))
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "2", UpdatedAt: now}, rows(f, "z"))

	cs, _ := db.GetChecksum(f)
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	st, _ := db.Stats()
	if st.Notes != 1 {
		t.Errorf("notes = %d, want 1", st.Notes)
	}
}

func TestDeletePartition(t *testing.T) {
	db := testDB(t)
	f := "nb_2024-01-01.tsv"
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "x", UpdatedAt: time.Now()}, rows(f, "body"))

	if err := db.DeletePartition(f); err != nil {
		t.Fatalf("DeletePartition: %v", err)
	}
	cs, _ := db.GetChecksum(f)
	if cs != "" {
		t.Errorf("deleted partition still has checksum %q", cs)
	}
	if st, _ := db.Stats(); st.Notes != 0 {
		t.Errorf("notes left after delete: %d", st.Notes)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.tsv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.ReplacePartition(PartitionRow{File: "a.tsv", Checksum: "1", UpdatedAt: now}, nil)
	_ = db.ReplacePartition(PartitionRow{File: "b.tsv", Checksum: "2", UpdatedAt: now}, nil)
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["a.tsv"] != "1" || all["b.tsv"] != "2" {
		t.Errorf("AllChecksums = %v", all)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	f := "nb_2024-01-01.tsv"
	_ = db.ReplacePartition(PartitionRow{File: f, Checksum: "1", UpdatedAt: time.Now()},
		rows(f, "nothing here", "uniqueword appears here"))

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].File != f || results[0].Line != 1 {
		t.Errorf("search results = %+v, want 1 hit at line 1", results)
	}
	if results[0].Text != "uniqueword appears here" || results[0].Timestamp == "" {
		t.Errorf("hit = %+v", results[0])
	}
}
