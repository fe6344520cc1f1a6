package codec

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

func utcCodec(t *testing.T) Codec {
	t.Helper()
	c, err := New(DefaultFieldSep, DefaultTagSep, time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestEncode_Format(t *testing.T) {
	c := utcCodec(t)
	n := &models.Note{
		Timestamp: time.Date(2024, 1, 5, 9, 30, 0, 123456000, time.UTC),
		Text:      "buy milk",
		Tags:      []string{"home", "errand"},
	}
	got, err := c.Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "2024-01-05T09:30:00.123456\tbuy milk\thome errand"
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	c := utcCodec(t)
	cases := []struct {
		name string
		text string
		tags []string
	}{
		{"plain", "hello world", []string{"a"}},
		{"no tags", "just text", []string{}},
		{"empty text", "", []string{"x", "y"}},
		{"unicode", "заметка ✓ 日本語", []string{"日記", "ok"}},
		{"punctuation", `quotes "and" \backslashes\, commas`, []string{"p-1", "p_2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &models.Note{
				Timestamp: time.Date(2023, 12, 31, 23, 59, 59, 999999000, time.UTC),
				Text:      tc.text,
				Tags:      tc.tags,
			}
			line, err := c.Encode(n)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(line, "nb_2023-12-31.tsv", 4)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !got.Timestamp.Equal(n.Timestamp) {
				t.Errorf("timestamp = %v, want %v", got.Timestamp, n.Timestamp)
			}
			if got.Text != n.Text {
				t.Errorf("text = %q, want %q", got.Text, n.Text)
			}
			if !slices.Equal(got.Tags, n.Tags) {
				t.Errorf("tags = %v, want %v", got.Tags, n.Tags)
			}
			if got.Location == nil || got.Location.File != "nb_2023-12-31.tsv" || got.Location.Line != 4 {
				t.Errorf("location = %+v", got.Location)
			}
		})
	}
}

func TestDecode_WrongFieldCount(t *testing.T) {
	c := utcCodec(t)
	for _, line := range []string{"", "2024-01-01T00:00:00\tonly two", "a\tb\tc\td"} {
		_, err := c.Decode(line, "f.tsv", 2)
		if !errors.Is(err, apperr.ErrParse) {
			t.Errorf("Decode(%q) err = %v, want ErrParse", line, err)
			continue
		}
		var pe *apperr.ParseError
		if !errors.As(err, &pe) || pe.Line != 2 || pe.File != "f.tsv" {
			t.Errorf("ParseError location = %+v", pe)
		}
	}
}

func TestDecode_BadTimestamp(t *testing.T) {
	c := utcCodec(t)
	_, err := c.Decode("yesterday\ttext\ttag", "f.tsv", 0)
	if !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestDecode_DropsEmptyTagsAndCR(t *testing.T) {
	c := utcCodec(t)
	n, err := c.Decode("2024-03-01T08:00:00\ttext\t a  b \r", "f.tsv", 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !slices.Equal(n.Tags, []string{"a", "b"}) {
		t.Errorf("tags = %q", n.Tags)
	}
}

func TestParseTimestamp_Variants(t *testing.T) {
	c := utcCodec(t)
	want := time.Date(2024, 2, 29, 12, 0, 0, 500000000, time.UTC)
	for _, s := range []string{
		"2024-02-29T12:00:00.5",
		"2024-02-29T12:00:00.500000",
		"2024-02-29T12:00:00.500000000",
		"2024-02-29T14:00:00.5+02:00",
	} {
		got, err := c.ParseTimestamp(s)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", s, got, want)
		}
	}
	// Writers may omit a zero fraction.
	if _, err := c.ParseTimestamp("2024-02-29T12:00:00"); err != nil {
		t.Errorf("whole seconds: %v", err)
	}
}

func TestNormalize_RepeatedHour(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	c, err := New(DefaultFieldSep, DefaultTagSep, loc)
	if err != nil {
		t.Fatal(err)
	}
	// 06:30 UTC on 2024-11-03 is the second 01:30 in New York that night.
	late := time.Date(2024, 11, 3, 6, 30, 0, 1500, time.UTC)
	got := c.Normalize(late)
	if c.FormatTimestamp(got) != c.FormatTimestamp(late) {
		t.Errorf("wall time changed: %s, want %s", c.FormatTimestamp(got), c.FormatTimestamp(late))
	}
	back, err := c.ParseTimestamp(c.FormatTimestamp(got))
	if err != nil || !back.Equal(got) {
		t.Errorf("normalized %v reads back as %v, %v", got, back, err)
	}
	if again := c.Normalize(got); !again.Equal(got) {
		t.Errorf("Normalize not idempotent: %v then %v", got, again)
	}
	if got.Nanosecond()%1000 != 0 {
		t.Errorf("sub-microsecond digits kept: %v", got)
	}
}

func TestEncode_RejectsSeparators(t *testing.T) {
	c := utcCodec(t)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bad := []*models.Note{
		{Timestamp: ts, Text: "tab\there"},
		{Timestamp: ts, Text: "two\nlines"},
		{Timestamp: ts, Text: "ok", Tags: []string{"has space"}},
		{Timestamp: ts, Text: "ok", Tags: []string{""}},
	}
	for _, n := range bad {
		if _, err := c.Encode(n); !errors.Is(err, ErrSeparatorInText) {
			t.Errorf("Encode(%q, %q) err = %v", n.Text, n.Tags, err)
		}
	}
}

func TestNew_InvalidSeparators(t *testing.T) {
	if _, err := New(' ', ' ', nil); err == nil {
		t.Error("equal separators should fail")
	}
	if _, err := New('\n', ' ', nil); err == nil {
		t.Error("newline separator should fail")
	}
	c, err := New('|', ',', nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, err := c.Decode("2024-01-01T00:00:00|a b|x,y,,x", "f", 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n.Text != "a b" || !slices.Equal(n.Tags, []string{"x", "y"}) {
		t.Errorf("note = %q %q", n.Text, n.Tags)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := Default.NormalizeTags([]string{" work  urgent", "work", "", "home\t"})
	want := []string{"work", "urgent", "home"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeTags = %q, want %q", got, want)
	}
}

func TestTimestamp_HeadOnly(t *testing.T) {
	c := utcCodec(t)
	ts, err := c.Timestamp("2024-01-01T10:00:00.000001\twhatever\t")
	if err != nil {
		t.Fatalf("Timestamp: %v", err)
	}
	if ts.Nanosecond() != 1000 {
		t.Errorf("nanos = %d", ts.Nanosecond())
	}
}
