package notebook

import (
	"time"

	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/storage"
)

// Option configures a Notebook at construction.
type Option func(*Notebook)

// WithTitle sets the notebook title instead of reading the settings file.
func WithTitle(title string) Option {
	return func(nb *Notebook) {
		nb.title = title
	}
}

// WithExtension sets the partition file extension (without dot).
func WithExtension(ext string) Option {
	return func(nb *Notebook) {
		if ext != "" {
			nb.ext = ext
		}
	}
}

// WithCodec sets the line codec.
func WithCodec(c codec.Codec) Option {
	return func(nb *Notebook) {
		nb.codec = c
	}
}

// WithClock replaces time.Now, which decides fresh timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(nb *Notebook) {
		if now != nil {
			nb.now = now
		}
	}
}

// WithProvider replaces the file system store.
func WithProvider(p storage.Provider) Option {
	return func(nb *Notebook) {
		nb.store = p
	}
}
