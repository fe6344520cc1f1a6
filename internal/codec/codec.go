// Package codec converts notes to and from single partition-file lines.
//
// A line has three fields joined by the field separator:
//
//	<timestamp>\t<text>\t<tag1> <tag2> ...
//
// Separators are not escaped. Text or tags containing them cannot be
// represented; Encode reports ErrSeparatorInText for such notes.
package codec

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

// TimestampLayout is the on-disk timestamp form: ISO-8601 local time with
// microseconds.
const TimestampLayout = "2006-01-02T15:04:05.000000"

const (
	DefaultFieldSep = '\t'
	DefaultTagSep   = ' '
)

// ErrSeparatorInText is returned by Encode when a note cannot be written
// without corrupting the line structure.
var ErrSeparatorInText = fmt.Errorf("codec: text contains a separator: %w", apperr.ErrInvalid)

// Codec holds the separators and the zone used for timestamps.
type Codec struct {
	fieldSep string
	tagSep   string
	loc      *time.Location
}

// Default is the tab/space codec in local time.
var Default = Codec{fieldSep: string(DefaultFieldSep), tagSep: string(DefaultTagSep), loc: time.Local}

// New builds a codec. Separators must differ and must not be a line break.
// A nil loc means time.Local.
func New(fieldSep, tagSep rune, loc *time.Location) (Codec, error) {
	if fieldSep == tagSep {
		return Codec{}, fmt.Errorf("codec: field and tag separators must differ")
	}
	for _, r := range []rune{fieldSep, tagSep} {
		if r == '\n' || r == '\r' || r == utf8.RuneError {
			return Codec{}, fmt.Errorf("codec: invalid separator %q", r)
		}
	}
	if loc == nil {
		loc = time.Local
	}
	return Codec{fieldSep: string(fieldSep), tagSep: string(tagSep), loc: loc}, nil
}

func (c Codec) location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// FieldSep returns the field separator.
func (c Codec) FieldSep() string { return c.fieldSep }

// TagSep returns the tag separator.
func (c Codec) TagSep() string { return c.tagSep }

// CheckText reports ErrSeparatorInText if s cannot be stored as note text.
func (c Codec) CheckText(s string) error {
	if strings.ContainsAny(s, c.fieldSep+"\n\r") {
		return ErrSeparatorInText
	}
	return nil
}

// Encode serializes n to one line without the trailing newline.
func (c Codec) Encode(n *models.Note) (string, error) {
	if err := c.CheckText(n.Text); err != nil {
		return "", err
	}
	for _, t := range n.Tags {
		if t == "" || strings.ContainsAny(t, c.fieldSep+c.tagSep+"\n\r") {
			return "", fmt.Errorf("%w: tag %q", ErrSeparatorInText, t)
		}
	}
	return c.FormatTimestamp(n.Timestamp) + c.fieldSep + n.Text + c.fieldSep + strings.Join(n.Tags, c.tagSep), nil
}

// Decode parses one line read from file at the given zero-based index.
// The returned note carries that location and a zero ID.
func (c Codec) Decode(line, file string, index int) (*models.Note, error) {
	line = strings.TrimSuffix(line, "\r")
	parts := strings.Split(line, c.fieldSep)
	if len(parts) != 3 {
		return nil, &apperr.ParseError{File: file, Line: index, Err: fmt.Errorf("want 3 fields, got %d", len(parts))}
	}
	ts, err := c.ParseTimestamp(parts[0])
	if err != nil {
		return nil, &apperr.ParseError{File: file, Line: index, Err: err}
	}
	return &models.Note{
		Timestamp: ts,
		Text:      parts[1],
		Tags:      c.SplitTags(parts[2]),
		Location:  &models.Location{File: file, Line: index},
	}, nil
}

// Timestamp returns the timestamp field of line without decoding the rest.
func (c Codec) Timestamp(line string) (time.Time, error) {
	head, _, _ := strings.Cut(line, c.fieldSep)
	return c.ParseTimestamp(head)
}

// FormatTimestamp renders t in the codec's zone.
func (c Codec) FormatTimestamp(t time.Time) string {
	return t.In(c.location()).Format(TimestampLayout)
}

// ParseTimestamp accepts local ISO-8601 date-times with any fractional
// precision, with or without a zone offset.
func (c Codec) ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, c.location()); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05Z07:00", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", s)
	}
	return t.In(c.location()), nil
}

// Normalize returns the instant t reads back as once written and parsed
// again. It drops sub-microsecond precision and, for wall times that occur
// twice in the codec's zone, settles on the instant ParseTimestamp picks.
func (c Codec) Normalize(t time.Time) time.Time {
	n, err := c.ParseTimestamp(c.FormatTimestamp(t))
	if err != nil {
		return t.Truncate(time.Microsecond)
	}
	return n
}

// SplitTags splits a tag field, dropping empty fragments and repeats.
func (c Codec) SplitTags(field string) []string {
	return uniq(strings.Split(field, c.tagSep))
}

// NormalizeTags prepares tags supplied by a user: each entry is split on the
// tag separator and on whitespace, then empties and repeats are dropped,
// preserving first-seen order.
func (c Codec) NormalizeTags(tags []string) []string {
	var parts []string
	for _, t := range tags {
		for _, p := range strings.Split(t, c.tagSep) {
			parts = append(parts, strings.Fields(p)...)
		}
	}
	return uniq(parts)
}

func uniq(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
