package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root  string // absolute path to notebook directory
	codec codec.Codec
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, c codec.Codec) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.Storage("stat root", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, codec: c}, nil
}

// Root returns the absolute notebook directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a file name against the root and rejects anything that
// is not a plain file directly inside it.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid file name %q", name)
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("storage: file name must not contain a path: %s", name)
	}
	return filepath.Join(f.root, name), nil
}

// List returns metadata for matching files directly under the root.
func (f *FS) List(match func(name string) bool) ([]models.PartitionInfo, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, apperr.Storage("list", err)
	}
	var out []models.PartitionInfo
	for _, e := range entries {
		if e.IsDir() || (match != nil && !match(e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, apperr.Storage("stat "+e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			return nil, apperr.Storage("read "+e.Name(), err)
		}
		out = append(out, models.PartitionInfo{
			Name:      e.Name(),
			Size:      info.Size(),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Exists reports whether a file is present under the root.
func (f *FS) Exists(name string) (bool, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, apperr.Storage("stat "+name, err)
	}
}

// Read returns the raw bytes of a file.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperr.Storage("read "+name, err)
	}
	return data, nil
}

// ReadLines returns the lines of a file. A final newline does not produce
// an extra empty line.
func (f *FS) ReadLines(name string) ([]string, error) {
	data, err := f.Read(name)
	if err != nil {
		return nil, err
	}
	return SplitLines(data), nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	return writeAtomic(abs, content)
}

// Save rewrites partition name so that it reflects notes.
//
// Tombstones mark their recorded line for removal, notes without a location
// are appended, and the rest overwrite their recorded line. All replacements
// are applied to the original line sequence before a single compaction pass;
// the surviving notes' line indices are then taken from their final
// positions. Locations change only after the file has been written.
func (f *FS) Save(name string, notes []*models.Note) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	exists, err := f.Exists(name)
	if err != nil {
		return err
	}

	type slot struct {
		text    string
		note    *models.Note
		removed bool
	}
	var slots []slot
	if exists {
		data, err := os.ReadFile(abs)
		if err != nil {
			return apperr.Storage("read "+name, err)
		}
		for _, l := range SplitLines(data) {
			slots = append(slots, slot{text: l})
		}
	}

	claim := func(n *models.Note) (int, error) {
		i := n.Location.Line
		if i < 0 || i >= len(slots) {
			return 0, fmt.Errorf("%w: %s line %d out of range (%d lines)", apperr.ErrStale, name, i, len(slots))
		}
		if slots[i].removed || slots[i].note != nil {
			return 0, fmt.Errorf("%w: %s line %d claimed twice", apperr.ErrStale, name, i)
		}
		ts, err := f.codec.Timestamp(slots[i].text)
		if err != nil || !ts.Equal(n.Timestamp) {
			return 0, fmt.Errorf("%w: %s line %d does not hold note %s", apperr.ErrStale, name, i, f.codec.FormatTimestamp(n.Timestamp))
		}
		return i, nil
	}

	for _, n := range notes {
		onDisk := exists && n.Location != nil && n.Location.File == name
		if n.Deleted {
			if !onDisk {
				continue
			}
			i, err := claim(n)
			if err != nil {
				return err
			}
			slots[i].removed = true
			continue
		}
		line, err := f.codec.Encode(n)
		if err != nil {
			return fmt.Errorf("storage: encode note %s: %w", f.codec.FormatTimestamp(n.Timestamp), err)
		}
		if !onDisk {
			slots = append(slots, slot{text: line, note: n})
			continue
		}
		i, err := claim(n)
		if err != nil {
			return err
		}
		slots[i].text = line
		slots[i].note = n
	}

	type placement struct {
		note *models.Note
		line int
	}
	var (
		buf    strings.Builder
		placed []placement
		count  int
	)
	for _, s := range slots {
		if s.removed {
			continue
		}
		if s.note != nil {
			placed = append(placed, placement{note: s.note, line: count})
		}
		buf.WriteString(s.text)
		buf.WriteByte('\n')
		count++
	}

	if err := writeAtomic(abs, []byte(buf.String())); err != nil {
		return err
	}
	for _, p := range placed {
		p.note.Location = &models.Location{File: name, Line: p.line}
		p.note.Dirty = false
	}
	return nil
}

// SplitLines splits partition content into lines without a trailing empty one.
func SplitLines(data []byte) []string {
	s := string(data)
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".jotter-tmp-*")
	if err != nil {
		return apperr.Storage("create temp", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return apperr.Storage("chmod temp", err)
	}
	if _, err := tmp.Write(content); err != nil {
		return apperr.Storage("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Storage("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("close temp", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return apperr.Storage("rename", err)
	}
	success = true

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
