// Package testutil provides shared test helpers for setting up notebooks and
// index databases.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/notebook"
	"github.com/starford/jotter/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "jotter-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Clock is a settable time source for notebook.WithClock.
type Clock struct{ T time.Time }

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.T }

// TestNotebook opens a notebook titled "nb" in a temporary directory with a
// UTC codec and a fake clock set to 2024-01-03 12:00 UTC. The returned store
// is the one the notebook writes through.
func TestNotebook(t *testing.T) (*notebook.Notebook, storage.Provider, *Clock) {
	t.Helper()
	dir := t.TempDir()
	c, err := codec.New(codec.DefaultFieldSep, codec.DefaultTagSep, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(dir, c)
	if err != nil {
		t.Fatal(err)
	}
	clock := &Clock{T: time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)}
	nb, err := notebook.Open(dir,
		notebook.WithTitle("nb"),
		notebook.WithCodec(c),
		notebook.WithClock(clock.Now),
		notebook.WithProvider(store),
	)
	if err != nil {
		t.Fatal(err)
	}
	return nb, store, clock
}
