package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notebook"
)

func TestPartitionTree(t *testing.T) {
	infos := []models.PartitionInfo{
		{Name: "nb_2023-12-31.tsv", Size: 10},
		{Name: "nb_2024-01-01.tsv", Size: 20},
		{Name: "nb_2024-01-15.tsv", Size: 30},
		{Name: "nb_2024-02-01.tsv", Size: 40},
	}
	dateOf := func(name string) (civil.Date, bool) {
		d, err := civil.ParseDate(strings.TrimSuffix(strings.TrimPrefix(name, "nb_"), ".tsv"))
		return d, err == nil
	}

	out := partitionTree("nb", infos, dateOf)
	for _, want := range []string{"nb\n", "2023", "2023-12", "2024", "2024-01", "2024-02", "nb_2024-01-15.tsv (30 B)"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "2024-01\n") != 1 {
		t.Errorf("month node repeated:\n%s", out)
	}
}

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery("2024-01-01", "2024-01-31", []string{"work"})
	if err != nil {
		t.Fatal(err)
	}
	if q.From != (civil.Date{Year: 2024, Month: time.January, Day: 1}) || q.To.Day != 31 || len(q.Tags) != 1 {
		t.Errorf("query = %+v", q)
	}

	q, err = buildQuery("", "", nil)
	if err != nil || q.Tags != nil || !q.From.IsZero() {
		t.Errorf("empty query = %+v, %v", q, err)
	}

	if _, err := buildQuery("Jan 1", "", nil); err == nil {
		t.Error("expected error for bad --from")
	}
}

func TestPrintNotes(t *testing.T) {
	nb, err := notebook.Open(t.TempDir(), notebook.WithTitle("nb"))
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, 1, 5, 9, 30, 0, 0, time.Local)
	notes := []*models.Note{
		{Timestamp: ts, Text: "tagged", Tags: []string{"a", "b"}},
		{Timestamp: ts.Add(time.Minute), Text: "plain"},
	}
	var buf bytes.Buffer
	printNotes(&buf, nb, notes)
	want := "2024-01-05T09:30:00.000000  tagged  [a b]\n2024-01-05T09:31:00.000000  plain\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
