package httpapi

import (
	"errors"
	"net/http"
	"time"

	"octobre.org/internal/note"
)

type createNoteRequest struct {
	Content    string   `json:"content"`
	Reason     string   `json:"reason"`
	Recipients []string `json:"recipients"`
}

type noteResponse struct {
	ID        int64     `json:"id"`
	LeadID    int64     `json:"lead_id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func toNoteResponse(n note.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		LeadID:    n.LeadID,
		Content:   n.Content,
		Author:    n.Author,
		Reason:    n.Reason.Name,
		CreatedAt: n.CreatedAt,
	}
}

func (a *API) createNote(w http.ResponseWriter, r *http.Request) {
	leadID, ok := pathID(w, r, "lead_id")
	if !ok {
		return
	}
	var req createNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	author, _ := SubjectFromContext(r.Context())
	created, err := a.notes.Create(r.Context(), leadID, note.CreateRequest{
		Content:    req.Content,
		ReasonName: req.Reason,
		Recipients: req.Recipients,
	}, author)
	if err != nil {
		handleNoteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(created))
}

func (a *API) listNotes(w http.ResponseWriter, r *http.Request) {
	leadID, ok := pathID(w, r, "lead_id")
	if !ok {
		return
	}
	notes, err := a.notes.ListByLead(r.Context(), leadID)
	if err != nil {
		handleNoteError(w, r, err)
		return
	}
	items := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		items = append(items, toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listNoteReasons(w http.ResponseWriter, r *http.Request) {
	reasons, err := a.notes.Reasons(r.Context())
	if err != nil {
		handleNoteError(w, r, err)
		return
	}
	type reasonResponse struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	items := make([]reasonResponse, 0, len(reasons))
	for _, re := range reasons {
		items = append(items, reasonResponse{ID: re.ID, Name: re.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func handleNoteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, note.ErrLeadNotFound):
		writeError(w, r, http.StatusNotFound, "lead not found")
	case errors.Is(err, note.ErrReasonNotFound):
		writeError(w, r, http.StatusBadRequest, "unknown note reason")
	case errors.Is(err, note.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "note operation failed")
	}
}
