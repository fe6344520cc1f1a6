package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/noteservice"
)

const (
	maxBodyBytes   = 1 << 20
	maxTextLen     = 64 << 10
	maxTagLen      = 128
	maxSearchLimit = 200
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteID parses the {id} URL parameter.
func noteID(w http.ResponseWriter, r *http.Request) (models.NoteID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return 0, false
	}
	return models.NoteID(id), true
}

// Notebook handles GET /api/notebook.
//
//	@Summary		Notebook state
//	@Tags			notebook
//	@Produce		json
//	@Success		200	{object}	noteservice.Info
//	@Security		BearerAuth
//	@Router			/notebook [get]
func (h *Handler) Notebook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Info(r.Context()))
}

// LoadAll handles POST /api/notebook/load-all.
//
//	@Summary		Load every partition file
//	@Tags			notebook
//	@Produce		json
//	@Success		200	{object}	LoadAllResponse
//	@Security		BearerAuth
//	@Router			/notebook/load-all [post]
func (h *Handler) LoadAll(w http.ResponseWriter, r *http.Request) {
	err := h.svc.LoadAll(r.Context())
	resp := LoadAllResponse{Notebook: h.svc.Info(r.Context())}
	if err != nil {
		// Partial loads still report the files that did load.
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				resp.Errors = append(resp.Errors, e.Error())
			}
		} else {
			resp.Errors = []string{err.Error()}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Save handles POST /api/notebook/save.
//
//	@Summary		Write dirty partitions
//	@Tags			notebook
//	@Produce		json
//	@Success		200	{object}	SaveResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebook/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Save(r.Context())
	if err != nil {
		writeError(w, "save", err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, SaveResponse{Files: files})
}

// QueryNotes handles GET /api/notes.
//
//	@Summary		Query notes by day range and tags
//	@Tags			notes
//	@Produce		json
//	@Param			from	query		string	false	"First day, YYYY-MM-DD"
//	@Param			to		query		string	false	"Last day, YYYY-MM-DD"
//	@Param			tags	query		string	false	"Comma-separated tags; a note matches if it has any"
//	@Success		200		{object}	NotesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) QueryNotes(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	p := queryParams{From: v.Get("from"), To: v.Get("to"), Tags: v.Get("tags")}
	if err := p.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	q, err := p.query()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	notes := h.svc.Query(r.Context(), q)
	writeJSON(w, http.StatusOK, NotesResponse{Notes: notes, Count: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note ID"
//	@Success		200	{object}	Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.Create(r.Context(), noteservice.CreateInput{
		Timestamp: req.Timestamp,
		Text:      req.Text,
		Tags:      req.Tags,
	})
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Change a note's text and/or tags; blank text discards it
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Note ID"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	UpdateNoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, discarded, err := h.svc.Update(r.Context(), id, noteservice.UpdateInput{Text: req.Text, Tags: req.Tags})
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateNoteResponse{Note: note, Discarded: discarded})
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	int	true	"Note ID"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tags handles GET /api/tags.
//
//	@Summary		Tags in use with note counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.svc.Tags(r.Context())})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across partition files
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	p := searchParams{Q: v.Get("q")}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
			return
		}
		p.Limit = n
	}
	if err := p.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	results, err := h.svc.Search(r.Context(), p.Q, p.Limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
