package httpapi

import (
	"errors"
	"net/http"
	"time"

	"octobre.org/internal/audit"
	"octobre.org/internal/calendar"
)

type importCalendarRequest struct {
	Name    string `json:"name"`
	ICSData string `json:"ics_data"`
}

type calendarResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type eventPayload struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

type eventResponse struct {
	ID         int64 `json:"id"`
	CalendarID int64 `json:"calendar_id"`
	eventPayload
}

func toCalendarResponse(c calendar.Calendar) calendarResponse {
	return calendarResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func toEventResponse(e calendar.Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		CalendarID: e.CalendarID,
		eventPayload: eventPayload{
			UID:         e.UID,
			Summary:     e.Summary,
			Description: e.Description,
			StartsAt:    e.StartsAt,
			EndsAt:      e.EndsAt,
		},
	}
}

func toEventResponses(events []calendar.Event) []eventResponse {
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, toEventResponse(e))
	}
	return items
}

func (a *API) importCalendar(w http.ResponseWriter, r *http.Request) {
	var req importCalendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	creator, _ := SubjectFromContext(r.Context())
	cal, events, err := a.calendars.ImportICS(r.Context(), req.Name, req.ICSData, creator)
	if err != nil {
		handleCalendarError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "calendar.import", creator, map[string]any{
		"calendar_id": cal.ID,
		"events":      len(events),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"calendar": toCalendarResponse(cal),
		"events":   toEventResponses(events),
	})
}

func (a *API) listCalendars(w http.ResponseWriter, r *http.Request) {
	sub, _ := SubjectFromContext(r.Context())
	calendars, err := a.calendars.ForUser(r.Context(), sub)
	if err != nil {
		handleCalendarError(w, r, err)
		return
	}
	items := make([]calendarResponse, 0, len(calendars))
	for _, c := range calendars {
		items = append(items, toCalendarResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "calendar_id")
	if !ok {
		return
	}
	cal, events, err := a.calendars.Get(r.Context(), id)
	if err != nil {
		handleCalendarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calendar": toCalendarResponse(cal),
		"events":   toEventResponses(events),
	})
}

func (a *API) createEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "calendar_id")
	if !ok {
		return
	}
	var req eventPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.calendars.CreateEvent(r.Context(), id, calendar.Event{
		UID:         req.UID,
		Summary:     req.Summary,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		handleCalendarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(created))
}

func (a *API) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "calendar_id")
	if !ok {
		return
	}
	uid := r.PathValue("event_uid")
	var req eventPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.calendars.UpdateEvent(r.Context(), id, uid, calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		handleCalendarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(updated))
}

func (a *API) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "calendar_id")
	if !ok {
		return
	}
	uid := r.PathValue("event_uid")
	if err := a.calendars.DeleteEvent(r.Context(), id, uid); err != nil {
		handleCalendarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func handleCalendarError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "calendar resource not found")
	case errors.Is(err, calendar.ErrInvalidICS),
		errors.Is(err, calendar.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "calendar operation failed")
	}
}
