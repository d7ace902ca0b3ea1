// Package httpapi is the HTTP layer: routing, authentication, the
// permission gate and request/response mapping for every service.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"octobre.org/internal/altcha"
	"octobre.org/internal/calendar"
	"octobre.org/internal/email"
	"octobre.org/internal/fingerprint"
	"octobre.org/internal/lead"
	"octobre.org/internal/note"
	"octobre.org/internal/obs"
	"octobre.org/internal/rbac"
)

// TokenVerifier resolves a bearer token into a subject identifier.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ReadyProbe checks the database before reporting ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries every collaborator the API needs.
type Options struct {
	Log          *logrus.Logger
	Verifier     TokenVerifier
	RBAC         *rbac.Service
	Leads        *lead.Service
	Notes        *note.Service
	Calendars    *calendar.Service
	Fingerprints *fingerprint.Service
	Emails       *email.Service
	Altcha       *altcha.Verifier
	Ready        ReadyProbe
	Version      string
}

// API is the HTTP layer.
type API struct {
	mux *http.ServeMux
	log *logrus.Logger

	verifier     TokenVerifier
	rbac         *rbac.Service
	leads        *lead.Service
	notes        *note.Service
	calendars    *calendar.Service
	fingerprints *fingerprint.Service
	emails       *email.Service
	altcha       *altcha.Verifier

	readyProbe ReadyProbe
	version    string
}

func New(opts Options) *API {
	a := &API{
		mux:          http.NewServeMux(),
		log:          opts.Log,
		verifier:     opts.Verifier,
		rbac:         opts.RBAC,
		leads:        opts.Leads,
		notes:        opts.Notes,
		calendars:    opts.Calendars,
		fingerprints: opts.Fingerprints,
		emails:       opts.Emails,
		altcha:       opts.Altcha,
		readyProbe:   opts.Ready,
		version:      opts.Version,
	}

	mux := a.mux

	// health/ready/info
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.HandleFunc("GET /readyz", a.ready)
	mux.HandleFunc("GET /v1/info", a.info)

	// Prometheus metrics
	mux.Handle("GET /metrics", obs.Handler())

	// anonymous, ALTCHA-gated
	mux.HandleFunc("GET /altcha-challenge", a.altchaChallenge)
	mux.HandleFunc("POST /v1/leads", a.createLead)
	mux.HandleFunc("PATCH /v1/leads/{lead_id}", a.updateLead)
	mux.HandleFunc("POST /v1/fingerprints", a.recordFingerprint)
	mux.HandleFunc("POST /v1/reports", a.recordReport)

	// authenticated
	mux.HandleFunc("GET /v1/leads", a.listLeads)
	mux.HandleFunc("GET /v1/leads/{lead_id}", a.getLead)
	mux.HandleFunc("GET /v1/leads/{lead_id}/modifications", a.listLeadModifications)
	mux.HandleFunc("GET /v1/leads/{lead_id}/notes", a.listNotes)
	mux.HandleFunc("POST /v1/leads/{lead_id}/notes", a.createNote)
	mux.HandleFunc("PUT /v1/leads/{lead_id}/notes", a.updateLeadNotes)
	mux.HandleFunc("GET /v1/note-reasons", a.listNoteReasons)

	mux.HandleFunc("POST /v1/calendars", a.importCalendar)
	mux.HandleFunc("GET /v1/calendars", a.listCalendars)

	// gated on per-instance calendar permissions
	mux.Handle("GET /v1/calendars/{calendar_id}",
		a.requirePermission(rbac.PermCalendarRead, calendar.ResourceKind, http.HandlerFunc(a.getCalendar)))
	mux.Handle("POST /v1/calendars/{calendar_id}/events",
		a.requirePermission(rbac.PermCalendarWrite, calendar.ResourceKind, http.HandlerFunc(a.createEvent)))
	mux.Handle("PUT /v1/calendars/{calendar_id}/events/{event_uid}",
		a.requirePermission(rbac.PermCalendarWrite, calendar.ResourceKind, http.HandlerFunc(a.updateEvent)))
	mux.Handle("DELETE /v1/calendars/{calendar_id}/events/{event_uid}",
		a.requirePermission(rbac.PermCalendarWrite, calendar.ResourceKind, http.HandlerFunc(a.deleteEvent)))

	// gated on the global admin permission
	mux.Handle("POST /v1/admin/grant",
		a.requirePermission(rbac.PermAdminManage, "", http.HandlerFunc(a.grantRole)))
	mux.Handle("POST /v1/admin/revoke",
		a.requirePermission(rbac.PermAdminManage, "", http.HandlerFunc(a.revokeRole)))

	// email accounts and classified emails
	mux.HandleFunc("POST /v1/email-accounts", a.createEmailAccount)
	mux.HandleFunc("GET /v1/email-accounts", a.listEmailAccounts)
	mux.HandleFunc("DELETE /v1/email-accounts/{account_id}", a.deleteEmailAccount)
	mux.HandleFunc("POST /v1/emails", a.createEmail)
	mux.HandleFunc("GET /v1/emails", a.listEmails)
	mux.HandleFunc("GET /v1/emails/{email_id}", a.getEmail)
	mux.HandleFunc("PUT /v1/emails/{email_id}/classification", a.reclassifyEmail)
	mux.HandleFunc("GET /v1/emails/{email_id}/history", a.emailHistory)
	mux.HandleFunc("DELETE /v1/emails/{email_id}", a.deleteEmail)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "octobre-api",
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "octobre-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) altchaChallenge(w http.ResponseWriter, r *http.Request) {
	if a.altcha == nil {
		writeError(w, r, http.StatusInternalServerError, "altcha is not configured")
		return
	}
	ch, err := a.altcha.Challenge()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "altcha is not configured")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// verifyAltcha gates an anonymous mutating request on a valid solution.
func (a *API) verifyAltcha(w http.ResponseWriter, r *http.Request, solution string) bool {
	if a.altcha == nil {
		writeError(w, r, http.StatusInternalServerError, "altcha is not configured")
		return false
	}
	if err := a.altcha.VerifySolution(solution); err != nil {
		if errors.Is(err, altcha.ErrNotConfigured) {
			writeError(w, r, http.StatusInternalServerError, "altcha is not configured")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid challenge solution")
		return false
	}
	return true
}
