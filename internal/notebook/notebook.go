// Package notebook is the note storage and query engine.
//
// A Notebook owns one directory of day partition files named
// <title>_<YYYY-MM-DD>.<ext>. It keeps the active notes sorted by timestamp,
// maintains the tag index, remembers which partitions are loaded, and
// reconciles edits back to disk on Save.
//
// A Notebook is not safe for concurrent use; hosts that share one across
// goroutines must serialize every call.
package notebook

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/storage"
	"github.com/starford/jotter/internal/tagindex"
)

// DefaultExtension is the partition file extension.
const DefaultExtension = "tsv"

// Notebook is the engine façade consumed by the outer layers.
type Notebook struct {
	dir   string
	title string
	ext   string
	codec codec.Codec
	now   func() time.Time
	store storage.Provider

	notes    []*models.Note // active, sorted by models.Less
	byID     map[models.NoteID]*models.Note
	deleted  []*models.Note // tombstones awaiting removal from disk
	tags     *tagindex.Index
	loaded   map[string]struct{}
	complete bool
	lastID   models.NoteID

	partitionRe *regexp.Regexp
}

// Fields seeds a note in Create. A zero Timestamp means "now".
type Fields struct {
	Timestamp time.Time
	Text      string
	Tags      []string
	Location  *models.Location
}

// Open binds a notebook to dir. The title comes from WithTitle, then from
// the settings file in dir, then from the directory name.
func Open(dir string, opts ...Option) (*Notebook, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("notebook: resolve dir: %w", err)
	}
	nb := &Notebook{
		dir:    abs,
		ext:    DefaultExtension,
		codec:  codec.Default,
		now:    time.Now,
		byID:   make(map[models.NoteID]*models.Note),
		tags:   tagindex.New(),
		loaded: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(nb)
	}
	if nb.store == nil {
		fs, err := storage.NewFS(abs, nb.codec)
		if err != nil {
			return nil, fmt.Errorf("notebook: %w", err)
		}
		nb.store = fs
	}
	if nb.title == "" {
		s, err := nb.LoadSettings()
		if err != nil {
			return nil, err
		}
		nb.title = s.Title
	}
	if nb.title == "" {
		nb.title = filepath.Base(abs)
	}
	if err := validateName("title", nb.title); err != nil {
		return nil, err
	}
	if err := validateName("extension", nb.ext); err != nil {
		return nil, err
	}
	if strings.Contains(nb.ext, ".") {
		return nil, fmt.Errorf("notebook: extension %q must not contain a dot", nb.ext)
	}
	nb.partitionRe = regexp.MustCompile(`^` + regexp.QuoteMeta(nb.title) + `_(\d{4}-\d{2}-\d{2})\.` + regexp.QuoteMeta(nb.ext) + `$`)
	return nb, nil
}

func validateName(what, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("notebook: invalid %s %q", what, s)
	}
	return nil
}

// Title returns the logical notebook name.
func (nb *Notebook) Title() string { return nb.title }

// Dir returns the absolute notebook directory.
func (nb *Notebook) Dir() string { return nb.dir }

// Extension returns the partition file extension.
func (nb *Notebook) Extension() string { return nb.ext }

// Codec returns the line codec in use.
func (nb *Notebook) Codec() codec.Codec { return nb.codec }

// FullyLoaded reports whether LoadAll has loaded every partition.
func (nb *Notebook) FullyLoaded() bool { return nb.complete }

// Len returns the number of active notes.
func (nb *Notebook) Len() int { return len(nb.notes) }

// Pending returns the number of tombstones awaiting Save.
func (nb *Notebook) Pending() int { return len(nb.deleted) }

// LoadedFiles returns the loaded partition names in order.
func (nb *Notebook) LoadedFiles() []string {
	out := make([]string, 0, len(nb.loaded))
	for f := range nb.loaded {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Dirty reports whether Save has anything to write.
func (nb *Notebook) Dirty() bool {
	if len(nb.deleted) > 0 {
		return true
	}
	for _, n := range nb.notes {
		if n.Dirty && !skipSave(n) {
			return true
		}
	}
	return false
}

// PartitionFile returns the file name holding notes of day d.
func (nb *Notebook) PartitionFile(d civil.Date) string {
	return fmt.Sprintf("%s_%s.%s", nb.title, d.String(), nb.ext)
}

// PartitionDate parses the day out of a partition file name of this notebook.
func (nb *Notebook) PartitionDate(name string) (civil.Date, bool) {
	m := nb.partitionRe.FindStringSubmatch(name)
	if m == nil {
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(m[1])
	if err != nil {
		return civil.Date{}, false
	}
	return d, true
}

// IsPartition reports whether name follows this notebook's naming pattern.
func (nb *Notebook) IsPartition(name string) bool {
	_, ok := nb.PartitionDate(name)
	return ok
}

// Partitions lists the partition files present on disk.
func (nb *Notebook) Partitions() ([]models.PartitionInfo, error) {
	infos, err := nb.store.List(nb.IsPartition)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(infos, func(a, b models.PartitionInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos, nil
}

// Get returns the active note with the given ID.
func (nb *Notebook) Get(id models.NoteID) (*models.Note, error) {
	n, ok := nb.byID[id]
	if !ok {
		return nil, fmt.Errorf("notebook: note %d: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}

// Notes returns every active note in ascending timestamp order.
func (nb *Notebook) Notes() []*models.Note {
	return slices.Clone(nb.notes)
}

// Tags returns the tags currently in use.
func (nb *Notebook) Tags() []string {
	return nb.tags.Tags()
}

// TagCount returns how many active notes carry tag.
func (nb *Notebook) TagCount(tag string) int {
	return nb.tags.Count(tag)
}

// Create inserts a new note. With nil fields the note gets a fresh,
// unused timestamp. An explicit timestamp equal to an active note's fails
// with ErrDuplicateKey. A Location must name a free line of a loaded
// partition, otherwise Create fails with ErrInvalid.
func (nb *Notebook) Create(f *Fields) (*models.Note, error) {
	if f == nil || f.Timestamp.IsZero() {
		n := &models.Note{Timestamp: nb.freshTimestamp(), Tags: []string{}, Dirty: true}
		if f != nil {
			if err := nb.fill(n, f.Text, f.Tags); err != nil {
				return nil, err
			}
		}
		nb.insert(n)
		return n, nil
	}

	ts := f.Timestamp
	if f.Location == nil {
		ts = nb.codec.Normalize(ts)
	} else if err := nb.checkLocation(f.Location); err != nil {
		return nil, err
	}
	if nb.findTimestamp(ts) != nil {
		return nil, fmt.Errorf("notebook: create %s: %w", nb.codec.FormatTimestamp(ts), apperr.ErrDuplicateKey)
	}
	n := &models.Note{Timestamp: ts, Tags: []string{}, Location: f.Location, Dirty: f.Location == nil}
	if err := nb.fill(n, f.Text, f.Tags); err != nil {
		return nil, err
	}
	nb.insert(n)
	return n, nil
}

func (nb *Notebook) fill(n *models.Note, text string, tags []string) error {
	if err := nb.codec.CheckText(text); err != nil {
		return fmt.Errorf("notebook: %w", err)
	}
	n.Text = text
	n.Tags = nb.codec.NormalizeTags(tags)
	return nil
}

// Delete tombstones an active note. Its tags leave the index at once; its
// line leaves the partition file on the next Save.
func (nb *Notebook) Delete(n *models.Note) error {
	if err := nb.active(n); err != nil {
		return err
	}
	i := nb.position(n)
	nb.notes = slices.Delete(nb.notes, i, i+1)
	delete(nb.byID, n.ID)
	nb.tags.RemoveAll(n)
	n.Deleted = true
	if n.Location != nil {
		nb.deleted = append(nb.deleted, n)
	}
	return nil
}

// SetText replaces the note's text.
func (nb *Notebook) SetText(n *models.Note, text string) error {
	if err := nb.active(n); err != nil {
		return err
	}
	if err := nb.codec.CheckText(text); err != nil {
		return fmt.Errorf("notebook: %w", err)
	}
	if n.Text != text {
		n.Text = text
		n.Dirty = true
	}
	return nil
}

// SetTags replaces the note's tags, keeping the tag index in step.
func (nb *Notebook) SetTags(n *models.Note, tags []string) error {
	if err := nb.active(n); err != nil {
		return err
	}
	before := slices.Clone(n.Tags)
	nb.tags.SetTags(n, nb.codec.NormalizeTags(tags))
	if !slices.Equal(before, n.Tags) {
		n.Dirty = true
	}
	return nil
}

// Edit applies an editor submission: blank text deletes the note,
// otherwise text and tags are replaced. It reports whether the note was
// discarded.
func (nb *Notebook) Edit(n *models.Note, text string, tags []string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return true, nb.Delete(n)
	}
	if err := nb.SetText(n, text); err != nil {
		return false, err
	}
	return false, nb.SetTags(n, tags)
}

// Discard deletes n if it was never given text nor written to disk, and
// reports whether it did.
func (nb *Notebook) Discard(n *models.Note) (bool, error) {
	if err := nb.active(n); err != nil {
		return false, err
	}
	if n.Text != "" || n.Location != nil {
		return false, nil
	}
	return true, nb.Delete(n)
}

func (nb *Notebook) active(n *models.Note) error {
	if n == nil || n.Deleted || nb.byID[n.ID] != n {
		id := models.NoteID(0)
		if n != nil {
			id = n.ID
		}
		return fmt.Errorf("notebook: note %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// freshTimestamp returns the current instant as it will read back from
// disk, moved forward until no active note holds it.
func (nb *Notebook) freshTimestamp() time.Time {
	ts := nb.codec.Normalize(nb.now())
	for nb.findTimestamp(ts) != nil {
		ts = nb.codec.Normalize(ts.Add(time.Microsecond))
	}
	return ts
}

// checkLocation accepts a caller-supplied location only inside a loaded
// partition and only on a line no other note claims. Anything else would
// let Save overwrite lines of a file the notebook has not read.
func (nb *Notebook) checkLocation(loc *models.Location) error {
	if !nb.IsLoaded(loc.File) {
		return fmt.Errorf("notebook: create at %s: partition not loaded: %w", loc.File, apperr.ErrInvalid)
	}
	for _, list := range [][]*models.Note{nb.notes, nb.deleted} {
		for _, n := range list {
			if n.Location != nil && *n.Location == *loc {
				return fmt.Errorf("notebook: create at %s line %d: line taken: %w", loc.File, loc.Line, apperr.ErrInvalid)
			}
		}
	}
	return nil
}

func (nb *Notebook) nextID() models.NoteID {
	nb.lastID++
	return nb.lastID
}

func (nb *Notebook) insert(n *models.Note) {
	n.ID = nb.nextID()
	i := sort.Search(len(nb.notes), func(i int) bool { return models.Less(n, nb.notes[i]) })
	nb.notes = slices.Insert(nb.notes, i, n)
	nb.byID[n.ID] = n
	for _, t := range n.Tags {
		nb.tags.Add(n, t)
	}
}

// position returns the index of an active note in nb.notes.
func (nb *Notebook) position(n *models.Note) int {
	i := sort.Search(len(nb.notes), func(i int) bool { return !models.Less(nb.notes[i], n) })
	for ; i < len(nb.notes); i++ {
		if nb.notes[i] == n {
			return i
		}
	}
	panic("notebook: active note missing from order")
}

// findTimestamp returns the active note with exactly timestamp ts.
func (nb *Notebook) findTimestamp(ts time.Time) *models.Note {
	i := sort.Search(len(nb.notes), func(i int) bool { return !nb.notes[i].Timestamp.Before(ts) })
	if i < len(nb.notes) && nb.notes[i].Timestamp.Equal(ts) {
		return nb.notes[i]
	}
	return nil
}

// FindByTimestamp returns the active note stamped ts.
func (nb *Notebook) FindByTimestamp(ts time.Time) (*models.Note, error) {
	if n := nb.findTimestamp(ts); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("notebook: note at %s: %w", nb.codec.FormatTimestamp(ts), apperr.ErrNotFound)
}
