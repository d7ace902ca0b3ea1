package calendar

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octobre.org/internal/rbac"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:evt-1@example.org
DTSTAMP:20260301T090000Z
DTSTART:20260310T090000Z
DTEND:20260310T100000Z
SUMMARY:Point commercial
DESCRIPTION:Suivi du lead Exemple SAS
END:VEVENT
BEGIN:VEVENT
UID:evt-2@example.org
DTSTAMP:20260301T090000Z
DTSTART:20260311T140000Z
DTEND:20260311T150000Z
SUMMARY:Démo produit
END:VEVENT
END:VCALENDAR
`

type stubStore struct {
	calendars map[int64]Calendar
	events    map[int64][]Event
	nextID    int64
}

func newStubStore() *stubStore {
	return &stubStore{calendars: map[int64]Calendar{}, events: map[int64][]Event{}}
}

func (s *stubStore) CreateCalendarWithEvents(_ context.Context, cal Calendar, events []Event) (Calendar, error) {
	s.nextID++
	cal.ID = s.nextID
	s.calendars[cal.ID] = cal
	for _, e := range events {
		s.nextID++
		e.ID = s.nextID
		e.CalendarID = cal.ID
		s.events[cal.ID] = append(s.events[cal.ID], e)
	}
	return cal, nil
}

func (s *stubStore) GetCalendar(_ context.Context, id int64) (Calendar, error) {
	cal, ok := s.calendars[id]
	if !ok {
		return Calendar{}, ErrNotFound
	}
	return cal, nil
}

func (s *stubStore) CalendarsByIDs(_ context.Context, ids []int64) ([]Calendar, error) {
	var out []Calendar
	for _, id := range ids {
		if cal, ok := s.calendars[id]; ok {
			out = append(out, cal)
		}
	}
	return out, nil
}

func (s *stubStore) EventsForCalendar(_ context.Context, calendarID int64) ([]Event, error) {
	return s.events[calendarID], nil
}

func (s *stubStore) GetEvent(_ context.Context, calendarID int64, uid string) (Event, error) {
	for _, e := range s.events[calendarID] {
		if e.UID == uid {
			return e, nil
		}
	}
	return Event{}, ErrNotFound
}

func (s *stubStore) CreateEvent(_ context.Context, e Event) (Event, error) {
	s.nextID++
	e.ID = s.nextID
	s.events[e.CalendarID] = append(s.events[e.CalendarID], e)
	return e, nil
}

func (s *stubStore) UpdateEvent(_ context.Context, e Event) (Event, error) {
	list := s.events[e.CalendarID]
	for i, old := range list {
		if old.UID == e.UID {
			list[i] = e
			return e, nil
		}
	}
	return Event{}, ErrNotFound
}

func (s *stubStore) DeleteEvent(_ context.Context, calendarID int64, uid string) error {
	list := s.events[calendarID]
	for i, e := range list {
		if e.UID == uid {
			s.events[calendarID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type stubAuthz struct {
	grants []rbac.Assignment
}

func (a *stubAuthz) Grant(_ context.Context, userSub, roleName string, ref rbac.ResourceRef) (rbac.Assignment, error) {
	assignment := rbac.Assignment{UserSub: userSub, RoleName: roleName, Resource: ref}
	a.grants = append(a.grants, assignment)
	return assignment, nil
}

func (a *stubAuthz) ResourceIDs(_ context.Context, userSub, kind string) ([]int64, error) {
	var out []int64
	for _, g := range a.grants {
		if g.UserSub == userSub && g.Resource.Kind == kind {
			out = append(out, g.Resource.ID)
		}
	}
	return out, nil
}

func newCalendarService(t *testing.T, store Store, authz Authorizer) *Service {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc, err := NewService(store, authz, log)
	require.NoError(t, err)
	return svc
}

func TestImportICS(t *testing.T) {
	store := newStubStore()
	authz := &stubAuthz{}
	svc := newCalendarService(t, store, authz)

	cal, events, err := svc.ImportICS(context.Background(), "Commercial", sampleICS, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Commercial", cal.Name)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-1@example.org", events[0].UID)
	assert.Equal(t, "Point commercial", events[0].Summary)
	assert.Equal(t, "Suivi du lead Exemple SAS", events[0].Description)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), events[0].StartsAt.UTC())
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), events[0].EndsAt.UTC())

	require.Len(t, authz.grants, 1)
	assert.Equal(t, rbac.RoleOwner, authz.grants[0].RoleName)
	assert.Equal(t, rbac.ResourceRef{Kind: ResourceKind, ID: cal.ID}, authz.grants[0].Resource)
}

func TestImportICSInvalidPayload(t *testing.T) {
	svc := newCalendarService(t, newStubStore(), &stubAuthz{})

	_, _, err := svc.ImportICS(context.Background(), "Commercial", "not an ics file", "user-1")
	assert.ErrorIs(t, err, ErrInvalidICS)
}

func TestImportICSRequiresName(t *testing.T) {
	svc := newCalendarService(t, newStubStore(), &stubAuthz{})

	_, _, err := svc.ImportICS(context.Background(), "  ", sampleICS, "user-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestForUserListsOnlyGrantedCalendars(t *testing.T) {
	store := newStubStore()
	authz := &stubAuthz{}
	svc := newCalendarService(t, store, authz)
	ctx := context.Background()

	mine, _, err := svc.ImportICS(ctx, "Mine", sampleICS, "user-1")
	require.NoError(t, err)
	_, _, err = svc.ImportICS(ctx, "Theirs", sampleICS, "user-2")
	require.NoError(t, err)

	cals, err := svc.ForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, mine.ID, cals[0].ID)

	none, err := svc.ForUser(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventLifecycle(t *testing.T) {
	store := newStubStore()
	svc := newCalendarService(t, store, &stubAuthz{})
	ctx := context.Background()

	cal, _, err := svc.ImportICS(ctx, "Commercial", sampleICS, "user-1")
	require.NoError(t, err)

	created, err := svc.CreateEvent(ctx, cal.ID, Event{Summary: "Relance"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID, "events without a uid get a generated one")

	updated, err := svc.UpdateEvent(ctx, cal.ID, created.UID, Event{Summary: "Relance décalée"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Relance décalée", updated.Summary)

	require.NoError(t, svc.DeleteEvent(ctx, cal.ID, created.UID))
	_, err = store.GetEvent(ctx, cal.ID, created.UID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteEvent(ctx, cal.ID, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEventUnknownCalendar(t *testing.T) {
	svc := newCalendarService(t, newStubStore(), &stubAuthz{})

	_, err := svc.CreateEvent(context.Background(), 99, Event{Summary: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}
