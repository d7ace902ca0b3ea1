package calendar

import (
	"errors"
	"time"
)

// ResourceKind is the authorization kind calendar permissions are scoped to.
const ResourceKind = "calendar"

var (
	// ErrNotFound is returned for a missing calendar or event.
	ErrNotFound = errors.New("calendar: not found")

	// ErrInvalidICS flags an unparseable iCalendar upload.
	ErrInvalidICS = errors.New("calendar: invalid ics data")

	// ErrInvalidInput flags missing mandatory fields.
	ErrInvalidInput = errors.New("calendar: invalid input")
)

// Calendar is one imported calendar.
type Calendar struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Event is one VEVENT row. Events are addressed by (CalendarID, UID);
// zero StartsAt/EndsAt mean the upload carried no usable timestamp.
type Event struct {
	ID          int64
	CalendarID  int64
	UID         string
	Summary     string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
}
