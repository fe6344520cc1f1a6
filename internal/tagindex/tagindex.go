// Package tagindex maintains an inverted index from tag to the notes
// carrying it.
//
// The index and each note's tag slice change together: callers mutate tags
// only through Add, Remove and SetTags. A bucket is deleted as soon as it
// becomes empty.
package tagindex

import (
	"slices"
	"sort"

	"github.com/starford/jotter/internal/models"
)

// Index maps tag → note ID → note.
type Index struct {
	buckets map[string]map[models.NoteID]*models.Note
}

// New returns an empty index.
func New() *Index {
	return &Index{buckets: make(map[string]map[models.NoteID]*models.Note)}
}

// Add appends tag to the note (if absent) and files the note under it.
func (x *Index) Add(n *models.Note, tag string) {
	if !n.HasTag(tag) {
		n.Tags = append(n.Tags, tag)
	}
	b, ok := x.buckets[tag]
	if !ok {
		b = make(map[models.NoteID]*models.Note)
		x.buckets[tag] = b
	}
	b[n.ID] = n
}

// Remove drops tag from the note and the note from the tag's bucket.
func (x *Index) Remove(n *models.Note, tag string) {
	if i := slices.Index(n.Tags, tag); i >= 0 {
		n.Tags = slices.Delete(n.Tags, i, i+1)
	}
	b, ok := x.buckets[tag]
	if !ok {
		return
	}
	delete(b, n.ID)
	if len(b) == 0 {
		delete(x.buckets, tag)
	}
}

// SetTags applies the symmetric difference between the note's current tags
// and tags. Tags present in both keep their position.
func (x *Index) SetTags(n *models.Note, tags []string) {
	old := slices.Clone(n.Tags)
	for _, t := range old {
		if !slices.Contains(tags, t) {
			x.Remove(n, t)
		}
	}
	for _, t := range tags {
		if !slices.Contains(old, t) {
			x.Add(n, t)
		}
	}
}

// RemoveAll drops every tag of the note from the index and the note.
func (x *Index) RemoveAll(n *models.Note) {
	for _, t := range slices.Clone(n.Tags) {
		x.Remove(n, t)
	}
}

// Rebuild discards all buckets and regenerates them from notes.
func (x *Index) Rebuild(notes []*models.Note) {
	x.buckets = make(map[string]map[models.NoteID]*models.Note)
	for _, n := range notes {
		for _, t := range n.Tags {
			b, ok := x.buckets[t]
			if !ok {
				b = make(map[models.NoteID]*models.Note)
				x.buckets[t] = b
			}
			b[n.ID] = n
		}
	}
}

// Tags returns the indexed tags in lexical order.
func (x *Index) Tags() []string {
	out := make([]string, 0, len(x.buckets))
	for t := range x.buckets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Notes returns the notes carrying tag in ascending timestamp order.
func (x *Index) Notes(tag string) []*models.Note {
	b := x.buckets[tag]
	out := make([]*models.Note, 0, len(b))
	for _, n := range b {
		out = append(out, n)
	}
	slices.SortFunc(out, models.Compare)
	return out
}

// Count returns the number of notes carrying tag.
func (x *Index) Count(tag string) int {
	return len(x.buckets[tag])
}

// Has reports whether a bucket exists for tag.
func (x *Index) Has(tag string) bool {
	_, ok := x.buckets[tag]
	return ok
}

// Len returns the number of buckets.
func (x *Index) Len() int {
	return len(x.buckets)
}
