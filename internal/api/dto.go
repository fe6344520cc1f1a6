package api

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/notebook"
	"github.com/starford/jotter/internal/noteservice"
)

const dateLayout = "2006-01-02"

// Note is a single note in API responses (aliased from the domain layer).
type Note = noteservice.Note

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Timestamp *time.Time `json:"timestamp,omitempty" example:"2024-01-05T09:30:00Z"`
	Text      string     `json:"text" example:"buy milk"`
	Tags      []string   `json:"tags" example:"home,errand"`
}

// Validate validates the create request.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Length(0, maxTextLen)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen))),
	)
}

// UpdateNoteRequest is the request body for PATCH. Absent fields are kept;
// blank text discards the note.
type UpdateNoteRequest struct {
	Text *string   `json:"text,omitempty" example:"buy oat milk"`
	Tags *[]string `json:"tags,omitempty" example:"home"`
}

// Validate validates the update request.
func (r *UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text,
			validation.When(r.Tags == nil, validation.NotNil.Error("text or tags is required")),
			validation.Length(0, maxTextLen)),
		validation.Field(&r.Tags, validation.By(func(any) error {
			if r.Tags == nil {
				return nil
			}
			return validation.Validate(*r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen)))
		})),
	)
}

// UpdateNoteResponse is returned by PATCH /notes/{id}.
type UpdateNoteResponse struct {
	Note      Note `json:"note"`
	Discarded bool `json:"discarded"`
}

// NotesResponse wraps query results.
type NotesResponse struct {
	Notes []Note `json:"notes" validate:"required"`
	Count int    `json:"count" example:"3"`
}

// TagsResponse lists tags with counts.
type TagsResponse struct {
	Tags []noteservice.TagCount `json:"tags" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// SaveResponse lists the partitions written by a save.
type SaveResponse struct {
	Files []string `json:"files"`
}

// LoadAllResponse reports the notebook after LoadAll and any files that
// failed to load.
type LoadAllResponse struct {
	Notebook noteservice.Info `json:"notebook"`
	Errors   []string         `json:"errors,omitempty"`
}

// queryParams are the GET /notes query string parameters.
type queryParams struct {
	From string
	To   string
	Tags string
}

func (p *queryParams) Validate() error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.From, validation.Date(dateLayout)),
		validation.Field(&p.To, validation.Date(dateLayout)),
	); err != nil {
		return err
	}
	q, _ := p.query()
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return fmt.Errorf("to must not be before from")
	}
	return nil
}

// query converts validated parameters; tags is a comma-separated list and
// an absent parameter means no tag filter.
func (p *queryParams) query() (notebook.Query, error) {
	var q notebook.Query
	var err error
	if p.From != "" {
		if q.From, err = civil.ParseDate(p.From); err != nil {
			return q, err
		}
	}
	if p.To != "" {
		if q.To, err = civil.ParseDate(p.To); err != nil {
			return q, err
		}
	}
	if p.Tags != "" {
		q.Tags = splitList(p.Tags)
	}
	return q, nil
}

type searchParams struct {
	Q     string
	Limit int
}

func (p *searchParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Q, validation.Required),
		validation.Field(&p.Limit, validation.Min(0), validation.Max(maxSearchLimit)),
	)
}
