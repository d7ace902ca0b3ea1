package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"octobre.org/internal/audit"
	"octobre.org/internal/lead"
)

type leadPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	JobTitle string `json:"job_title"`
	Conscent bool   `json:"conscent"`

	CompanyName string `json:"company_name"`
	CompanySize int    `json:"company_size"`

	Positions []string `json:"positions"`
	Concerns  []string `json:"concerns"`

	ProblemSummary string `json:"problem_summary"`
	EstimatedUsers int    `json:"estimated_users"`
	Urgency        string `json:"urgency"`
}

type createLeadRequest struct {
	leadPayload
	AltchaSolution string `json:"altcha_solution"`
	VisitorID      string `json:"visitor_id"`
}

type updateLeadRequest struct {
	AltchaSolution string `json:"altcha_solution"`
	VisitorID      string `json:"visitor_id"`

	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	JobTitle *string `json:"job_title"`
	Conscent *bool   `json:"conscent"`

	CompanyName *string `json:"company_name"`
	CompanySize *int    `json:"company_size"`

	Positions *[]string `json:"positions"`
	Concerns  *[]string `json:"concerns"`

	Urgency        *string `json:"urgency"`
	ProblemSummary *string `json:"problem_summary"`
	EstimatedUsers *int    `json:"estimated_users"`
}

type leadResponse struct {
	ID             int64     `json:"id"`
	SubmittedAt    time.Time `json:"submitted_at"`
	MaturityScore  int       `json:"maturity_score"`
	PotentialScore int       `json:"potential_score"`

	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	JobTitle string `json:"job_title"`
	Conscent bool   `json:"conscent"`

	CompanyName string `json:"company_name"`
	CompanySize int    `json:"company_size"`

	Status          string  `json:"status"`
	Urgency         *string `json:"urgency"`
	RecommendedPack *string `json:"recommended_pack"`

	Positions []string `json:"positions"`
	Concerns  []string `json:"concerns"`

	ProblemSummary string `json:"problem_summary"`
	EstimatedUsers int    `json:"estimated_users"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type modificationResponse struct {
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
}

func toLeadResponse(l lead.Lead) leadResponse {
	resp := leadResponse{
		ID:             l.ID,
		SubmittedAt:    l.SubmittedAt,
		MaturityScore:  l.MaturityScore,
		PotentialScore: lead.PotentialScore(l),
		Name:           l.Contact.Name,
		Email:          l.Contact.Email,
		Phone:          l.Contact.Phone,
		JobTitle:       l.Contact.JobTitle,
		Conscent:       l.Contact.Conscent,
		CompanyName:    l.Company.Name,
		CompanySize:    l.Company.Size,
		Status:         l.Status.Name,
		Positions:      make([]string, 0, len(l.Positions)),
		Concerns:       make([]string, 0, len(l.Concerns)),
		ProblemSummary: l.ProblemSummary,
		EstimatedUsers: l.EstimatedUsers,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
	if l.Urgency != nil {
		resp.Urgency = &l.Urgency.Name
	}
	if l.RecommendedPack != nil {
		resp.RecommendedPack = &l.RecommendedPack.Name
	}
	for _, p := range l.Positions {
		resp.Positions = append(resp.Positions, p.Title)
	}
	for _, c := range l.Concerns {
		resp.Concerns = append(resp.Concerns, c.Label)
	}
	return resp
}

func (a *API) createLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.verifyAltcha(w, r, req.AltchaSolution) {
		return
	}
	created, err := a.leads.Create(r.Context(), lead.Payload{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		JobTitle:       req.JobTitle,
		Conscent:       req.Conscent,
		CompanyName:    req.CompanyName,
		CompanySize:    req.CompanySize,
		Positions:      req.Positions,
		Concerns:       req.Concerns,
		ProblemSummary: req.ProblemSummary,
		EstimatedUsers: req.EstimatedUsers,
		Urgency:        req.Urgency,
	}, req.AltchaSolution, req.VisitorID)
	if err != nil {
		handleLeadError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "lead.create", "", map[string]any{
		"lead_id":        created.ID,
		"maturity_score": created.MaturityScore,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/leads/%d", created.ID))
	writeJSON(w, http.StatusCreated, toLeadResponse(created))
}

func (a *API) listLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := a.leads.List(r.Context())
	if err != nil {
		handleLeadError(w, r, err)
		return
	}
	items := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		items = append(items, toLeadResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "lead_id")
	if !ok {
		return
	}
	l, err := a.leads.Get(r.Context(), id)
	if err != nil {
		handleLeadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(l))
}

func (a *API) updateLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "lead_id")
	if !ok {
		return
	}
	var req updateLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// No challenge re-verification here: the stored (solution, visitor)
	// pair must be replayed verbatim, which a fresh challenge could never
	// satisfy. Update performs the exact match.
	updated, err := a.leads.Update(r.Context(), id, lead.UpdateRequest{
		AltchaSolution: req.AltchaSolution,
		VisitorID:      req.VisitorID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		JobTitle:       req.JobTitle,
		Conscent:       req.Conscent,
		CompanyName:    req.CompanyName,
		CompanySize:    req.CompanySize,
		Positions:      req.Positions,
		Concerns:       req.Concerns,
		Urgency:        req.Urgency,
		ProblemSummary: req.ProblemSummary,
		EstimatedUsers: req.EstimatedUsers,
	})
	if err != nil {
		handleLeadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(updated))
}

func (a *API) listLeadModifications(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "lead_id")
	if !ok {
		return
	}
	logs, err := a.leads.Modifications(r.Context(), id)
	if err != nil {
		handleLeadError(w, r, err)
		return
	}
	items := make([]modificationResponse, 0, len(logs))
	for _, row := range logs {
		items = append(items, modificationResponse{
			Field:     row.Field,
			OldValue:  row.OldValue,
			NewValue:  row.NewValue,
			ChangedAt: row.ChangedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type updateLeadNotesRequest struct {
	Content string `json:"content"`
}

func (a *API) updateLeadNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "lead_id")
	if !ok {
		return
	}
	var req updateLeadNotesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	author, _ := SubjectFromContext(r.Context())
	if err := a.leads.UpdateNotes(r.Context(), id, req.Content, author); err != nil {
		handleLeadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "noted"})
}

func handleLeadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lead.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "lead not found")
	case errors.Is(err, lead.ErrIdentityMismatch):
		writeError(w, r, http.StatusBadRequest, "identity mismatch")
	case errors.Is(err, lead.ErrInvalidUrgency),
		errors.Is(err, lead.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, lead.ErrInitialStatusNotConfigured):
		writeError(w, r, http.StatusInternalServerError, "lead status seed data is missing")
	default:
		writeError(w, r, http.StatusInternalServerError, "lead operation failed")
	}
}
