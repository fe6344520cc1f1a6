package index

import (
	"log/slog"
	"time"

	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/storage"
)

// Layout tells the index which files are partitions and how their lines
// are encoded.
type Layout struct {
	Match func(name string) bool
	Codec codec.Codec
}

// Sync walks the partition files and brings the index up to date:
//   - new/changed partitions are parsed and replaced
//   - partitions removed from disk are deleted from the index
//
// It returns the names of the partitions it touched.
func Sync(db NoteIndex, store storage.Provider, layout Layout, logger *slog.Logger) ([]string, error) {
	infos, err := store.List(layout.Match)
	if err != nil {
		return nil, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var changed []string
	disk := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		disk[info.Name] = struct{}{}

		if checksums[info.Name] == info.Checksum {
			continue
		}

		data, err := store.Read(info.Name)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("file", info.Name), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, layout, info.Name, data, info.UpdatedAt, logger); err != nil {
			logger.Warn("sync: index failed", slog.String("file", info.Name), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("file", info.Name))
		changed = append(changed, info.Name)
	}

	for f := range checksums {
		if _, ok := disk[f]; ok {
			continue
		}
		if err := db.DeletePartition(f); err != nil {
			logger.Warn("sync: delete failed", slog.String("file", f), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("file", f))
		changed = append(changed, f)
	}

	return changed, nil
}

// indexFile decodes a partition and replaces its rows. Lines that do not
// decode are left out of the index and logged.
func indexFile(db NoteIndex, layout Layout, file string, data []byte, updatedAt time.Time, logger *slog.Logger) error {
	lines := storage.SplitLines(data)
	rows := make([]NoteRow, 0, len(lines))
	for i, line := range lines {
		n, err := layout.Codec.Decode(line, file, i)
		if err != nil {
			logger.Warn("index: skip line", slog.String("error", err.Error()))
			continue
		}
		rows = append(rows, NoteRow{
			File:      file,
			Line:      i,
			Timestamp: layout.Codec.FormatTimestamp(n.Timestamp),
			Text:      n.Text,
			Tags:      n.Tags,
		})
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return db.ReplacePartition(PartitionRow{
		File:      file,
		Checksum:  storage.Checksum(data),
		UpdatedAt: updatedAt,
	}, rows)
}
