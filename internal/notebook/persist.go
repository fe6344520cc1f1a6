package notebook

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

// Load reads today's partition if it exists and is not loaded yet.
func (nb *Notebook) Load() error {
	name := nb.PartitionFile(civil.DateOf(nb.now()))
	ok, err := nb.store.Exists(name)
	if err != nil || !ok {
		return err
	}
	return nb.loadFile(name)
}

// LoadAll loads every partition of this notebook not loaded yet. A file that
// fails to load is skipped and reported in the joined error; the others are
// still loaded. Calling LoadAll again retries only the failed files.
func (nb *Notebook) LoadAll() error {
	infos, err := nb.Partitions()
	if err != nil {
		return err
	}
	var errs []error
	for _, info := range infos {
		if err := nb.loadFile(info.Name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	nb.complete = true
	return nil
}

// IsLoaded reports whether a partition has been read this session.
func (nb *Notebook) IsLoaded(name string) bool {
	_, ok := nb.loaded[name]
	return ok
}

// loadFile parses a whole partition before touching any state. A malformed
// line or a timestamp already held by an active note aborts the file: no
// note from it is inserted and it stays unloaded.
func (nb *Notebook) loadFile(name string) error {
	if nb.IsLoaded(name) {
		return nil
	}
	lines, err := nb.store.ReadLines(name)
	if err != nil {
		return fmt.Errorf("notebook: load %s: %w", name, err)
	}

	batch := make([]*models.Note, 0, len(lines))
	for i, line := range lines {
		n, err := nb.codec.Decode(line, name, i)
		if err != nil {
			return fmt.Errorf("notebook: load %s: %w", name, err)
		}
		batch = append(batch, n)
	}
	slices.SortStableFunc(batch, func(a, b *models.Note) int { return a.Timestamp.Compare(b.Timestamp) })
	for i, n := range batch {
		if (i > 0 && batch[i-1].Timestamp.Equal(n.Timestamp)) || nb.findTimestamp(n.Timestamp) != nil {
			return fmt.Errorf("notebook: load %s line %d: %s: %w",
				name, n.Location.Line, nb.codec.FormatTimestamp(n.Timestamp), apperr.ErrDuplicateKey)
		}
	}

	for _, n := range batch {
		n.ID = nb.nextID()
		nb.byID[n.ID] = n
	}
	nb.notes = append(nb.notes, batch...)
	slices.SortFunc(nb.notes, models.Compare)
	nb.tags.Rebuild(nb.notes)
	nb.loaded[name] = struct{}{}
	return nil
}

// Save writes every partition holding a dirty note or a tombstone.
//
// Active notes go to the partition they were loaded from, or to the
// partition of their own day. Notes that were never written and have no
// text are left out. A partition that cannot be preloaded or written is
// skipped and its notes stay dirty and its tombstones pending; the others
// are still written. Every failure is reported in the joined error.
func (nb *Notebook) Save() error {
	var errs []error
	failed := make(map[string]bool)

	// New notes may land in a partition that exists but was never loaded;
	// its lines must be in memory before it is rewritten.
	for _, n := range nb.Notes() {
		if skipSave(n) || n.Location != nil {
			continue
		}
		name := nb.target(n)
		if nb.IsLoaded(name) || failed[name] {
			continue
		}
		ok, err := nb.store.Exists(name)
		if err == nil && ok {
			err = nb.loadFile(name)
		}
		if err != nil {
			failed[name] = true
			errs = append(errs, fmt.Errorf("notebook: save %s: %w", name, err))
		}
	}

	groups, names := nb.plan()
	for _, name := range names {
		if failed[name] {
			continue
		}
		if err := nb.savePartition(name, groups[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (nb *Notebook) savePartition(name string, notes []*models.Note) error {
	existed, err := nb.store.Exists(name)
	if err != nil {
		return fmt.Errorf("notebook: save %s: %w", name, err)
	}
	if err := nb.store.Save(name, notes); err != nil {
		return fmt.Errorf("notebook: save %s: %w", name, err)
	}
	nb.deleted = slices.DeleteFunc(nb.deleted, func(n *models.Note) bool { return n.Location.File == name })
	if !existed {
		nb.loaded[name] = struct{}{}
	}
	return nil
}

// DirtyPartitions returns, in name order, the partitions the next Save
// would rewrite.
func (nb *Notebook) DirtyPartitions() []string {
	_, names := nb.plan()
	return names
}

// plan groups the notes by target partition and returns the dirty
// partition names in order.
func (nb *Notebook) plan() (map[string][]*models.Note, []string) {
	groups := make(map[string][]*models.Note)
	dirty := make(map[string]bool)
	for _, n := range nb.notes {
		if skipSave(n) {
			continue
		}
		name := nb.target(n)
		groups[name] = append(groups[name], n)
		if n.Dirty || n.Location == nil {
			dirty[name] = true
		}
	}
	for _, n := range nb.deleted {
		name := n.Location.File
		groups[name] = append(groups[name], n)
		dirty[name] = true
	}

	names := make([]string, 0, len(dirty))
	for name := range dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return groups, names
}

func (nb *Notebook) target(n *models.Note) string {
	if n.Location != nil {
		return n.Location.File
	}
	return nb.PartitionFile(civil.DateOf(n.Timestamp))
}

// skipSave reports whether n is a new note with nothing worth writing.
func skipSave(n *models.Note) bool {
	return n.Location == nil && n.IsEmpty()
}
