// Package storage persists notebook partition files.
package storage

import "github.com/starford/jotter/internal/models"

// Provider is the interface for partition file operations. Names are
// relative to the notebook directory.
type Provider interface {
	// List returns metadata for every regular file in the notebook directory
	// whose name satisfies match. A nil match lists every file.
	List(match func(name string) bool) ([]models.PartitionInfo, error)
	// Exists reports whether name is present.
	Exists(name string) (bool, error)
	// Read returns the raw bytes of name.
	Read(name string) ([]byte, error)
	// ReadLines returns the lines of name without line terminators.
	ReadLines(name string) ([]string, error)
	// Write atomically replaces name with content.
	Write(name string, content []byte) error
	// Save reconciles notes (including tombstones) into the partition name
	// in a single rewrite and refreshes their locations.
	Save(name string, notes []*models.Note) error
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
