// Package models defines the domain types for Jotter.
package models

import (
	"slices"
	"strings"
	"time"
)

// NoteID identifies a note for the lifetime of a notebook session.
// IDs are never reused and never written to disk.
type NoteID uint64

// Location is the physical position of a persisted note.
type Location struct {
	File string // partition file name, relative to the notebook directory
	Line int    // zero-based line index within File
}

// Note is a timestamped text item with tags.
type Note struct {
	ID        NoteID
	Timestamp time.Time
	Text      string
	Tags      []string
	Location  *Location
	Deleted   bool

	// Dirty is set whenever the note differs from its on-disk line.
	Dirty bool
}

// IsEmpty reports whether the note has no text worth keeping.
func (n *Note) IsEmpty() bool {
	return strings.TrimSpace(n.Text) == ""
}

// HasTag reports whether tag is in the note's tag sequence.
func (n *Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// HasAnyTag reports whether at least one of the note's tags is in set.
func (n *Note) HasAnyTag(set map[string]struct{}) bool {
	for _, t := range n.Tags {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Persisted reports whether the note has a recorded on-disk location.
func (n *Note) Persisted() bool {
	return n.Location != nil
}

// Less orders notes by timestamp, breaking ties by ID.
func Less(a, b *Note) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Compare is the three-way form of Less, usable with slices.SortFunc.
func Compare(a, b *Note) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}

// PartitionInfo describes one partition file on disk.
type PartitionInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
