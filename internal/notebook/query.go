package notebook

import (
	"sort"

	"cloud.google.com/go/civil"

	"github.com/starford/jotter/internal/models"
)

// Query selects active notes by day range and tags.
//
// From and To are inclusive; a zero date leaves that side unbounded. Only
// the date part of a timestamp is compared. A nil Tags applies no filter;
// otherwise a note matches if it carries at least one of Tags, so an empty
// non-nil Tags matches nothing.
type Query struct {
	From civil.Date
	To   civil.Date
	Tags []string
}

// Query returns the matching notes in ascending timestamp order.
//
// The active notes are sorted, so the first note on or after From is found
// by binary search and the scan stops at the first note past To.
func (nb *Notebook) Query(q Query) []*models.Note {
	start := 0
	if !q.From.IsZero() {
		start = sort.Search(len(nb.notes), func(i int) bool {
			return !civil.DateOf(nb.notes[i].Timestamp).Before(q.From)
		})
	}

	var filter map[string]struct{}
	if q.Tags != nil {
		filter = make(map[string]struct{}, len(q.Tags))
		for _, t := range q.Tags {
			filter[t] = struct{}{}
		}
	}

	var out []*models.Note
	for _, n := range nb.notes[start:] {
		if !q.To.IsZero() && civil.DateOf(n.Timestamp).After(q.To) {
			break
		}
		if filter != nil && !n.HasAnyTag(filter) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Days returns the distinct days that hold active notes, in order, with the
// number of notes on each.
func (nb *Notebook) Days() []DayCount {
	var out []DayCount
	for _, n := range nb.notes {
		d := civil.DateOf(n.Timestamp)
		if len(out) > 0 && out[len(out)-1].Date == d {
			out[len(out)-1].Count++
			continue
		}
		out = append(out, DayCount{Date: d, Count: 1})
	}
	return out
}

// DayCount is the number of active notes on one day.
type DayCount struct {
	Date  civil.Date
	Count int
}
