package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testLayout(t *testing.T) Layout {
	t.Helper()
	c, err := codec.New(codec.DefaultFieldSep, codec.DefaultTagSep, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	return Layout{
		Match: func(name string) bool { return strings.HasPrefix(name, "nb_") && strings.HasSuffix(name, ".tsv") },
		Codec: c,
	}
}

func testStore(t *testing.T, layout Layout) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir, layout.Codec)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

func writePartition(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSync_IndexesAndRemoves(t *testing.T) {
	layout := testLayout(t)
	dir, store := testStore(t, layout)
	db := testDB(t)

	writePartition(t, dir, "nb_2024-01-01.tsv",
		"2024-01-01T09:00:00.000000\tmorning coffee\tfood",
		"2024-01-01T12:00:00.000000\tlunch\tfood work")
	writePartition(t, dir, "nb_2024-01-02.tsv", "2024-01-02T09:00:00.000000\tstandup\twork")
	writePartition(t, dir, "notes.txt", "not a partition")

	changed, err := Sync(db, store, layout, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	slices.Sort(changed)
	if !slices.Equal(changed, []string{"nb_2024-01-01.tsv", "nb_2024-01-02.tsv"}) {
		t.Errorf("changed = %v", changed)
	}
	if st, _ := db.Stats(); st.Partitions != 2 || st.Notes != 3 {
		t.Errorf("Stats = %+v", st)
	}

	// Unchanged files are skipped.
	changed, _ = Sync(db, store, layout, quietLogger())
	if len(changed) != 0 {
		t.Errorf("second sync changed %v", changed)
	}

	_ = os.Remove(filepath.Join(dir, "nb_2024-01-02.tsv"))
	changed, _ = Sync(db, store, layout, quietLogger())
	if !slices.Equal(changed, []string{"nb_2024-01-02.tsv"}) {
		t.Errorf("changed after remove = %v", changed)
	}
	if cs, _ := db.GetChecksum("nb_2024-01-02.tsv"); cs != "" {
		t.Error("removed partition still indexed")
	}
}

func TestSync_SkipsMalformedLines(t *testing.T) {
	layout := testLayout(t)
	dir, store := testStore(t, layout)
	db := testDB(t)

	writePartition(t, dir, "nb_2024-01-01.tsv",
		"garbage",
		"2024-01-01T12:00:00.000000\tsearchable\t")

	if _, err := Sync(db, store, layout, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	res, err := db.Search("searchable", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Line != 1 {
		t.Errorf("results = %+v", res)
	}
}
