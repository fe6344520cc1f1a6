package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/jotter/internal/noteservice"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Notebook.Path = filepath.Join(dir, "notes")
	cfg.SQLite.Path = filepath.Join(dir, "data", "jotter.db")
	return cfg
}

func TestOpenNotebook_RecordsTitle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notebook.Title = "journal"

	nb, _, err := OpenNotebook(cfg)
	if err != nil {
		t.Fatalf("OpenNotebook: %v", err)
	}
	if nb.Title() != "journal" {
		t.Errorf("title = %q", nb.Title())
	}

	// A second open without a configured title reads the settings file.
	cfg.Notebook.Title = ""
	nb, _, err = OpenNotebook(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if nb.Title() != "journal" {
		t.Errorf("reopened title = %q", nb.Title())
	}
}

func TestOpenNotebook_DirectoryNameFallback(t *testing.T) {
	cfg := testConfig(t)
	nb, _, err := OpenNotebook(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if nb.Title() != "notes" {
		t.Errorf("title = %q, want notes", nb.Title())
	}
}

func TestOpenLoadsTodayAndIndexes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notebook.Title = "nb"
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	if err := os.MkdirAll(cfg.Notebook.Path, 0o755); err != nil {
		t.Fatal(err)
	}
	lines := "2024-03-10T08:00:00.000000\ttoday's note\twork\n"
	if err := os.WriteFile(filepath.Join(cfg.Notebook.Path, "nb_2024-03-10.tsv"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	old := "2024-03-01T08:00:00.000000\told note\t\n"
	if err := os.WriteFile(filepath.Join(cfg.Notebook.Path, "nb_2024-03-01.tsv"), []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := newApplication([]Option{WithConfig(cfg), WithClock(func() time.Time { return now })}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := app.open(context.Background(), slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.close()

	info := rt.svc.Info(context.Background())
	if info.Notes != 1 || info.FullyLoaded {
		t.Errorf("info = %+v", info)
	}
	st, err := rt.db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Partitions != 2 || st.Notes != 2 {
		t.Errorf("index stats = %+v", st)
	}
}

func TestAutosave(t *testing.T) {
	cfg := testConfig(t)
	app, err := newApplication([]Option{WithConfig(cfg)}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rt, err := app.open(context.Background(), logger)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.close()

	if _, err := rt.svc.Create(context.Background(), noteservice.CreateInput{Text: "autosaved"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		autosave(ctx, rt.svc, 10*time.Millisecond, logger)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rt.svc.Dirty() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if rt.svc.Dirty() {
		t.Fatal("autosave did not flush")
	}
	parts, err := rt.svc.Partitions(context.Background())
	if err != nil || len(parts) != 1 {
		t.Errorf("partitions = %v, %v", parts, err)
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	app := &application{config: NewDefaultConfig(), logOut: &buf}
	app.logger().Info("hello", slog.String("k", "v"))
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("non-terminal output should be JSON, got %q", buf.String())
	}
}
