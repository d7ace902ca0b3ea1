package httpapi

import (
	"errors"
	"net/http"

	"octobre.org/internal/fingerprint"
)

type recordFingerprintRequest struct {
	AltchaSolution string         `json:"altcha_solution"`
	VisitorID      string         `json:"visitor_id"`
	Components     map[string]any `json:"components"`
}

type recordReportRequest struct {
	AltchaSolution string `json:"altcha_solution"`
	VisitorID      string `json:"visitor_id"`
	Page           string `json:"page"`
}

func (a *API) recordFingerprint(w http.ResponseWriter, r *http.Request) {
	var req recordFingerprintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.verifyAltcha(w, r, req.AltchaSolution) {
		return
	}
	fp, err := a.fingerprints.Record(r.Context(), req.VisitorID, req.Components)
	if err != nil {
		handleFingerprintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         fp.ID,
		"visitor_id": fp.VisitorID,
	})
}

func (a *API) recordReport(w http.ResponseWriter, r *http.Request) {
	var req recordReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.verifyAltcha(w, r, req.AltchaSolution) {
		return
	}
	rep, err := a.fingerprints.Report(r.Context(), req.VisitorID, req.Page)
	if err != nil {
		handleFingerprintError(w, r, err)
		return
	}
	// Reports for unknown visitors are dropped without telling the caller.
	if rep == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"recorded": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"recorded": true, "id": rep.ID})
}

func handleFingerprintError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fingerprint.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "fingerprint operation failed")
	}
}
