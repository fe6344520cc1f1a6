package index

// NoteIndex is the search mirror of the partition files.
type NoteIndex interface {
	ReplacePartition(p PartitionRow, notes []NoteRow) error
	DeletePartition(file string) error
	GetChecksum(file string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Stats() (Stats, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
