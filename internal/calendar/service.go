package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"octobre.org/internal/rbac"
)

// Store is the persistence contract for calendars and events.
// CreateCalendarWithEvents writes the calendar row and all events in one
// transaction.
type Store interface {
	CreateCalendarWithEvents(ctx context.Context, cal Calendar, events []Event) (Calendar, error)
	GetCalendar(ctx context.Context, id int64) (Calendar, error)
	CalendarsByIDs(ctx context.Context, ids []int64) ([]Calendar, error)
	EventsForCalendar(ctx context.Context, calendarID int64) ([]Event, error)
	GetEvent(ctx context.Context, calendarID int64, uid string) (Event, error)
	CreateEvent(ctx context.Context, e Event) (Event, error)
	UpdateEvent(ctx context.Context, e Event) (Event, error)
	DeleteEvent(ctx context.Context, calendarID int64, uid string) error
}

// Authorizer is the slice of the rbac service the calendar flow needs:
// granting the creator its owner role and listing reachable calendars.
type Authorizer interface {
	Grant(ctx context.Context, userSub, roleName string, ref rbac.ResourceRef) (rbac.Assignment, error)
	ResourceIDs(ctx context.Context, userSub, kind string) ([]int64, error)
}

// Service imports and serves calendars.
type Service struct {
	store Store
	authz Authorizer
	log   *logrus.Logger
}

// NewService constructs a Service.
func NewService(store Store, authz Authorizer, log *logrus.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("calendar: store is required")
	}
	if authz == nil {
		return nil, errors.New("calendar: authorizer is required")
	}
	if log == nil {
		return nil, errors.New("calendar: logger is required")
	}
	return &Service{store: store, authz: authz, log: log}, nil
}

// ImportICS parses an uploaded iCalendar blob, persists the calendar and
// its events in one transaction and grants the creator the owner role on
// the new calendar.
func (s *Service) ImportICS(ctx context.Context, name, icsData, creatorSub string) (Calendar, []Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Calendar{}, nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	events, err := parseEvents(icsData)
	if err != nil {
		return Calendar{}, nil, err
	}

	created, err := s.store.CreateCalendarWithEvents(ctx, Calendar{Name: name}, events)
	if err != nil {
		return Calendar{}, nil, fmt.Errorf("create calendar: %w", err)
	}

	ref := rbac.ResourceRef{Kind: ResourceKind, ID: created.ID}
	if _, err := s.authz.Grant(ctx, creatorSub, rbac.RoleOwner, ref); err != nil {
		return Calendar{}, nil, fmt.Errorf("grant owner on calendar %d: %w", created.ID, err)
	}

	stored, err := s.store.EventsForCalendar(ctx, created.ID)
	if err != nil {
		return Calendar{}, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"calendar_id": created.ID,
		"events":      len(stored),
	}).Info("calendar imported")
	return created, stored, nil
}

// parseEvents maps VEVENT components to event rows. Events without a UID
// get a generated one so they stay addressable.
func parseEvents(icsData string) ([]Event, error) {
	cal, err := ics.ParseCalendar(strings.NewReader(icsData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidICS, err)
	}

	var events []Event
	for _, ve := range cal.Events() {
		e := Event{UID: ve.Id()}
		if e.UID == "" {
			e.UID = uuid.NewString()
		}
		if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
			e.Summary = p.Value
		}
		if p := ve.GetProperty(ics.ComponentPropertyDescription); p != nil {
			e.Description = p.Value
		}
		if start, err := ve.GetStartAt(); err == nil {
			e.StartsAt = start
		}
		if end, err := ve.GetEndAt(); err == nil {
			e.EndsAt = end
		}
		events = append(events, e)
	}
	return events, nil
}

// ForUser lists the calendars the subject holds any role on.
func (s *Service) ForUser(ctx context.Context, userSub string) ([]Calendar, error) {
	ids, err := s.authz.ResourceIDs(ctx, userSub, ResourceKind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Calendar{}, nil
	}
	return s.store.CalendarsByIDs(ctx, ids)
}

// Get loads one calendar and its events.
func (s *Service) Get(ctx context.Context, id int64) (Calendar, []Event, error) {
	cal, err := s.store.GetCalendar(ctx, id)
	if err != nil {
		return Calendar{}, nil, err
	}
	events, err := s.store.EventsForCalendar(ctx, id)
	if err != nil {
		return Calendar{}, nil, err
	}
	return cal, events, nil
}

// CreateEvent appends one event to an existing calendar.
func (s *Service) CreateEvent(ctx context.Context, calendarID int64, e Event) (Event, error) {
	if _, err := s.store.GetCalendar(ctx, calendarID); err != nil {
		return Event{}, err
	}
	e.CalendarID = calendarID
	if strings.TrimSpace(e.UID) == "" {
		e.UID = uuid.NewString()
	}
	return s.store.CreateEvent(ctx, e)
}

// UpdateEvent replaces the stored fields of the event addressed by
// (calendarID, uid).
func (s *Service) UpdateEvent(ctx context.Context, calendarID int64, uid string, e Event) (Event, error) {
	current, err := s.store.GetEvent(ctx, calendarID, uid)
	if err != nil {
		return Event{}, err
	}
	e.ID = current.ID
	e.CalendarID = calendarID
	e.UID = uid
	return s.store.UpdateEvent(ctx, e)
}

// DeleteEvent removes the event addressed by (calendarID, uid).
func (s *Service) DeleteEvent(ctx context.Context, calendarID int64, uid string) error {
	if _, err := s.store.GetEvent(ctx, calendarID, uid); err != nil {
		return err
	}
	return s.store.DeleteEvent(ctx, calendarID, uid)
}
