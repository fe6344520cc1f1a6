// Package noteservice serializes access to a notebook and fans its changes
// out to the search index, the event broker and the metrics.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/metrics"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notebook"
	"github.com/starford/jotter/internal/sse"
	"github.com/starford/jotter/internal/storage"
)

// ErrSearchDisabled is returned by Search when no index is configured.
var ErrSearchDisabled = errors.New("noteservice: search index disabled")

// Note is a point-in-time copy of a note, safe to use outside the lock.
type Note struct {
	ID        models.NoteID `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Text      string        `json:"text"`
	Tags      []string      `json:"tags"`
	File      string        `json:"file,omitempty"`
	Line      *int          `json:"line,omitempty"`
}

// Info describes the notebook state.
type Info struct {
	Title       string   `json:"title"`
	Dir         string   `json:"dir"`
	Notes       int      `json:"notes"`
	Pending     int      `json:"pending_deletes"`
	Dirty       bool     `json:"dirty"`
	FullyLoaded bool     `json:"fully_loaded"`
	LoadedFiles []string `json:"loaded_files"`
}

// TagCount is a tag and the number of active notes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CreateInput seeds a new note. A nil Timestamp means now.
type CreateInput struct {
	Timestamp *time.Time
	Text      string
	Tags      []string
}

// UpdateInput changes a note. Nil fields are left alone; a blank Text
// deletes the note.
type UpdateInput struct {
	Text *string
	Tags *[]string
}

// Publisher receives change events.
type Publisher interface {
	Publish(e sse.Event)
	PublishNoteEvent(kind string, n sse.NoteRef)
	PublishPartitionEvent(kind, file string)
}

// Service coordinates the notebook, the index and the event stream.
type Service struct {
	mu sync.Mutex
	nb *notebook.Notebook

	store  storage.Provider
	db     index.NoteIndex
	events Publisher
	logger *slog.Logger

	// written maps each partition the last Save rewrote to the checksum of
	// what it wrote, so the watcher's echo of that write can be dropped.
	written map[string]string
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables search and keeps db in step after saves and loads.
func WithIndex(db index.NoteIndex, store storage.Provider) Option {
	return func(s *Service) {
		s.db = db
		s.store = store
	}
}

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service owning nb. The caller must not use nb directly
// afterwards.
func New(nb *notebook.Notebook, opts ...Option) *Service {
	s := &Service{nb: nb, logger: slog.Default(), written: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	metrics.NotesActive.Set(float64(nb.Len()))
	return s
}

// Layout describes the notebook's partition files for the index.
func (s *Service) Layout() index.Layout {
	return index.Layout{Match: s.nb.IsPartition, Codec: s.nb.Codec()}
}

// Dir returns the notebook directory.
func (s *Service) Dir() string { return s.nb.Dir() }

// Info returns the notebook state.
func (s *Service) Info(_ context.Context) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Title:       s.nb.Title(),
		Dir:         s.nb.Dir(),
		Notes:       s.nb.Len(),
		Pending:     s.nb.Pending(),
		Dirty:       s.nb.Dirty(),
		FullyLoaded: s.nb.FullyLoaded(),
		LoadedFiles: s.nb.LoadedFiles(),
	}
}

// Query runs q against the loaded notes.
func (s *Service) Query(_ context.Context, q notebook.Query) []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.Queries.Inc()
	return views(s.nb.Query(q))
}

// Get returns one note.
func (s *Service) Get(_ context.Context, id models.NoteID) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.nb.Get(id)
	if err != nil {
		return Note{}, err
	}
	return view(n), nil
}

// Create adds a note.
func (s *Service) Create(_ context.Context, in CreateInput) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &notebook.Fields{Text: in.Text, Tags: in.Tags}
	if in.Timestamp != nil {
		f.Timestamp = *in.Timestamp
	}
	n, err := s.nb.Create(f)
	if err != nil {
		return Note{}, err
	}
	metrics.NotesCreated.Inc()
	s.changed("created", n)
	return view(n), nil
}

// Update applies in to note id. It reports whether the note was discarded
// because its text became blank.
func (s *Service) Update(_ context.Context, id models.NoteID, in UpdateInput) (Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.nb.Get(id)
	if err != nil {
		return Note{}, false, err
	}

	if in.Text != nil {
		tags := n.Tags
		if in.Tags != nil {
			tags = *in.Tags
		}
		discarded, err := s.nb.Edit(n, *in.Text, tags)
		if err != nil {
			return Note{}, false, err
		}
		if discarded {
			metrics.NotesDeleted.Inc()
			s.changed("deleted", n)
			return view(n), true, nil
		}
	} else if in.Tags != nil {
		if err := s.nb.SetTags(n, *in.Tags); err != nil {
			return Note{}, false, err
		}
	}
	s.changed("updated", n)
	return view(n), false, nil
}

// Delete tombstones a note.
func (s *Service) Delete(_ context.Context, id models.NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.nb.Get(id)
	if err != nil {
		return err
	}
	if err := s.nb.Delete(n); err != nil {
		return err
	}
	metrics.NotesDeleted.Inc()
	s.changed("deleted", n)
	return nil
}

// Tags lists the tags in use with their note counts.
func (s *Service) Tags(_ context.Context) []TagCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := s.nb.Tags()
	out := make([]TagCount, len(tags))
	for i, t := range tags {
		out[i] = TagCount{Tag: t, Count: s.nb.TagCount(t)}
	}
	return out
}

// Partitions lists the partition files on disk.
func (s *Service) Partitions(_ context.Context) ([]models.PartitionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nb.Partitions()
}

// PartitionDate returns the day a partition file holds.
func (s *Service) PartitionDate(name string) (civil.Date, bool) {
	return s.nb.PartitionDate(name)
}

// Search runs a full-text query against the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, ErrSearchDisabled
	}
	return s.db.Search(query, limit)
}

// Dirty reports whether Save has anything to write.
func (s *Service) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nb.Dirty()
}

// Load reads today's partition.
func (s *Service) Load(ctx context.Context) error {
	return s.load(ctx, s.nb.Load)
}

// LoadAll reads every partition not loaded yet. Failed files are reported
// in the joined error; the rest are loaded.
func (s *Service) LoadAll(ctx context.Context) error {
	return s.load(ctx, s.nb.LoadAll)
}

func (s *Service) load(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	before := len(s.nb.LoadedFiles())
	err := fn()
	loaded := len(s.nb.LoadedFiles()) - before
	metrics.NotesActive.Set(float64(s.nb.Len()))
	s.mu.Unlock()

	metrics.PartitionsLoaded.Add(float64(loaded))
	s.logger.Info("notebook loaded", slog.Int("partitions", loaded))
	if err != nil {
		s.logger.Warn("notebook load incomplete", slog.String("error", err.Error()))
	}
	s.syncIndex()
	return err
}

// Save writes dirty partitions and refreshes the index. It returns the
// partitions written, also when others failed and an error is returned.
func (s *Service) Save(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var (
		files []string
		err   error
	)
	if dirty := s.nb.DirtyPartitions(); len(dirty) > 0 {
		start := time.Now()
		err = s.nb.Save()
		metrics.ObserveSave(start, err)
		left := s.nb.DirtyPartitions()
		files = slices.DeleteFunc(dirty, func(f string) bool { return slices.Contains(left, f) })
		s.remember(files)
	}
	s.mu.Unlock()

	if len(files) > 0 {
		s.syncIndex()
		s.logger.Info("notebook saved", slog.Any("files", files))
		if s.events != nil {
			s.events.Publish(sse.Event{Type: sse.NotebookSaved, Data: map[string][]string{"files": files}})
		}
	}
	if err != nil {
		s.logger.Error("notebook save failed", slog.String("error", err.Error()), slog.Any("written", files))
		return files, fmt.Errorf("noteservice: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return files, nil
}

// remember records the checksums of freshly written partitions; the caller
// holds s.mu.
func (s *Service) remember(files []string) {
	if s.store == nil {
		return
	}
	for _, f := range files {
		data, err := s.store.Read(f)
		if err != nil {
			delete(s.written, f)
			continue
		}
		s.written[f] = storage.Checksum(data)
	}
}

// ownWrite reports whether file still holds exactly what Save last wrote
// to it. The record is dropped once the file diverges.
func (s *Service) ownWrite(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.written[file]
	if !ok {
		return false
	}
	if data, err := s.store.Read(file); err == nil && storage.Checksum(data) == sum {
		return true
	}
	delete(s.written, file)
	return false
}

// SyncIndex brings the search index up to date with the files on disk.
func (s *Service) SyncIndex(_ context.Context) []string {
	return s.syncIndex()
}

func (s *Service) syncIndex() []string {
	if s.db == nil {
		return nil
	}
	files, err := index.Sync(s.db, s.store, s.Layout(), s.logger)
	if err != nil {
		s.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
	return files
}

// PartitionChanged is the index watcher callback. Events caused by the
// service's own saves are not republished.
func (s *Service) PartitionChanged(kind, file string) {
	if s.ownWrite(file) {
		s.logger.Debug("partition event from own save", slog.String("kind", kind), slog.String("file", file))
		return
	}
	s.logger.Debug("partition changed on disk", slog.String("kind", kind), slog.String("file", file))
	if s.events != nil {
		s.events.PublishPartitionEvent(kind, file)
	}
}

// changed records a mutation; the caller holds s.mu.
func (s *Service) changed(kind string, n *models.Note) {
	metrics.NotesActive.Set(float64(s.nb.Len()))
	if s.events != nil {
		s.events.PublishNoteEvent(kind, sse.NoteRef{ID: n.ID, Timestamp: s.nb.Codec().FormatTimestamp(n.Timestamp)})
	}
}

func view(n *models.Note) Note {
	v := Note{
		ID:        n.ID,
		Timestamp: n.Timestamp,
		Text:      n.Text,
		Tags:      append([]string{}, n.Tags...),
	}
	if n.Location != nil && !n.Deleted {
		line := n.Location.Line
		v.File = n.Location.File
		v.Line = &line
	}
	return v
}

func views(notes []*models.Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = view(n)
	}
	return out
}
