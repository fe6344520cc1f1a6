package tagindex

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/starford/jotter/internal/models"
)

func mk(id int) *models.Note {
	return &models.Note{
		ID:        models.NoteID(id),
		Timestamp: time.Date(2024, 1, 1, 0, 0, id, 0, time.UTC),
		Tags:      []string{},
	}
}

// checkConsistent verifies that every bucket holds exactly the notes whose
// tag slice contains the bucket's tag, and that no bucket is empty.
func checkConsistent(t *testing.T, x *Index, notes []*models.Note) {
	t.Helper()
	want := make(map[string]map[models.NoteID]bool)
	for _, n := range notes {
		for _, tag := range n.Tags {
			if want[tag] == nil {
				want[tag] = make(map[models.NoteID]bool)
			}
			want[tag][n.ID] = true
		}
	}
	if len(x.buckets) != len(want) {
		t.Fatalf("bucket count = %d, want %d (%v vs %v)", len(x.buckets), len(want), x.Tags(), want)
	}
	for tag, b := range x.buckets {
		if len(b) == 0 {
			t.Fatalf("empty bucket %q", tag)
		}
		if len(b) != len(want[tag]) {
			t.Fatalf("bucket %q size = %d, want %d", tag, len(b), len(want[tag]))
		}
		for id := range b {
			if !want[tag][id] {
				t.Fatalf("bucket %q holds note %d without that tag", tag, id)
			}
		}
	}
}

func TestAddRemove(t *testing.T) {
	x := New()
	a, b := mk(1), mk(2)
	x.Add(a, "work")
	x.Add(b, "work")
	x.Add(a, "work")
	if !slices.Equal(a.Tags, []string{"work"}) {
		t.Errorf("a.Tags = %v", a.Tags)
	}
	if x.Count("work") != 2 {
		t.Errorf("Count = %d, want 2", x.Count("work"))
	}

	x.Remove(a, "work")
	x.Remove(b, "work")
	if x.Has("work") {
		t.Error("empty bucket left behind")
	}
	if len(a.Tags) != 0 || len(b.Tags) != 0 {
		t.Errorf("tags not removed from notes: %v %v", a.Tags, b.Tags)
	}

	// Removing an absent tag is a no-op.
	x.Remove(a, "nope")
	checkConsistent(t, x, []*models.Note{a, b})
}

func TestSetTags_SymmetricDifference(t *testing.T) {
	x := New()
	n := mk(1)
	x.SetTags(n, []string{"a", "b", "c"})
	x.SetTags(n, []string{"c", "d", "a"})

	// a and c keep their original relative order; d is appended.
	if !slices.Equal(n.Tags, []string{"a", "c", "d"}) {
		t.Errorf("tags = %v, want [a c d]", n.Tags)
	}
	if x.Has("b") {
		t.Error("bucket b should be gone")
	}
	checkConsistent(t, x, []*models.Note{n})
}

func TestRebuild(t *testing.T) {
	x := New()
	a, b := mk(1), mk(2)
	a.Tags = []string{"x", "y"}
	b.Tags = []string{"y"}
	x.Add(mk(3), "stale")
	x.Rebuild([]*models.Note{a, b})

	if x.Has("stale") {
		t.Error("rebuild kept an old bucket")
	}
	if got := x.Tags(); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("Tags = %v", got)
	}
	got := x.Notes("y")
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Notes(y) not in timestamp order")
	}
	checkConsistent(t, x, []*models.Note{a, b})
}

func TestRemoveAll(t *testing.T) {
	x := New()
	n := mk(1)
	x.SetTags(n, []string{"a", "b"})
	x.RemoveAll(n)
	if x.Len() != 0 || len(n.Tags) != 0 {
		t.Errorf("Len = %d, tags = %v", x.Len(), n.Tags)
	}
}

func TestRandomOperationsStayConsistent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	tags := []string{"a", "b", "c", "d", "e"}
	notes := []*models.Note{mk(1), mk(2), mk(3), mk(4)}
	x := New()

	for step := 0; step < 2000; step++ {
		n := notes[r.IntN(len(notes))]
		tag := tags[r.IntN(len(tags))]
		switch r.IntN(3) {
		case 0:
			x.Add(n, tag)
		case 1:
			x.Remove(n, tag)
		default:
			var set []string
			for _, tg := range tags {
				if r.IntN(2) == 0 {
					set = append(set, tg)
				}
			}
			x.SetTags(n, set)
		}
		checkConsistent(t, x, notes)
	}
}
