package note

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	reasons []Reason
	notes   []Note
	nextID  int64
}

func (s *stubStore) FindReasonByName(_ context.Context, name string) (Reason, error) {
	for _, r := range s.reasons {
		if r.Name == name {
			return r, nil
		}
	}
	return Reason{}, ErrReasonNotFound
}

func (s *stubStore) FirstReason(_ context.Context) (Reason, error) {
	if len(s.reasons) == 0 {
		return Reason{}, ErrReasonNotFound
	}
	return s.reasons[0], nil
}

func (s *stubStore) CreateReason(_ context.Context, name string) (Reason, error) {
	s.nextID++
	r := Reason{ID: s.nextID, Name: name}
	s.reasons = append(s.reasons, r)
	return r, nil
}

func (s *stubStore) CreateNote(_ context.Context, n Note) (Note, error) {
	s.nextID++
	n.ID = s.nextID
	s.notes = append(s.notes, n)
	return n, nil
}

func (s *stubStore) NotesForLead(_ context.Context, leadID int64) ([]Note, error) {
	var out []Note
	for _, n := range s.notes {
		if n.LeadID == leadID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *stubStore) Reasons(_ context.Context) ([]Reason, error) {
	return s.reasons, nil
}

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string) error {
	m.sent = append(m.sent, to)
	return m.err
}

func newNoteService(t *testing.T, store Store, mailer Mailer) *Service {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc, err := NewService(store, log, mailer)
	require.NoError(t, err)
	return svc
}

func TestCreateResolvesReason(t *testing.T) {
	store := &stubStore{reasons: []Reason{{ID: 1, Name: "relance"}}}
	svc := newNoteService(t, store, nil)

	created, err := svc.Create(context.Background(), 7, CreateRequest{
		Content:    "rappeler lundi",
		ReasonName: "relance",
	}, "ops")
	require.NoError(t, err)
	assert.Equal(t, "relance", created.Reason.Name)
	assert.Equal(t, int64(7), created.LeadID)
}

func TestCreateUnknownReason(t *testing.T) {
	svc := newNoteService(t, &stubStore{}, nil)

	_, err := svc.Create(context.Background(), 7, CreateRequest{
		Content:    "x",
		ReasonName: "ghost",
	}, "ops")
	assert.ErrorIs(t, err, ErrReasonNotFound)
}

func TestCreateEmptyContent(t *testing.T) {
	svc := newNoteService(t, &stubStore{}, nil)

	_, err := svc.Create(context.Background(), 7, CreateRequest{Content: "  "}, "ops")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateMailFailureIsSwallowed(t *testing.T) {
	store := &stubStore{reasons: []Reason{{ID: 1, Name: "relance"}}}
	mailer := &stubMailer{err: errors.New("smtp down")}
	svc := newNoteService(t, store, mailer)

	_, err := svc.Create(context.Background(), 7, CreateRequest{
		Content:    "rappeler lundi",
		ReasonName: "relance",
		Recipients: []string{"sales@example.org"},
	}, "ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales@example.org"}, mailer.sent)
}

func TestAddInternalUsesSeededReason(t *testing.T) {
	store := &stubStore{reasons: []Reason{{ID: 1, Name: "relance"}, {ID: 2, Name: InternalReason}}}
	svc := newNoteService(t, store, nil)

	require.NoError(t, svc.AddInternal(context.Background(), 3, "note", "ops"))
	require.Len(t, store.notes, 1)
	assert.Equal(t, InternalReason, store.notes[0].Reason.Name)
}

func TestAddInternalFallsBackToFirstReason(t *testing.T) {
	store := &stubStore{reasons: []Reason{{ID: 1, Name: "relance"}}}
	svc := newNoteService(t, store, nil)

	require.NoError(t, svc.AddInternal(context.Background(), 3, "note", "ops"))
	require.Len(t, store.notes, 1)
	assert.Equal(t, "relance", store.notes[0].Reason.Name)
}

func TestAddInternalCreatesReasonWhenVocabularyEmpty(t *testing.T) {
	store := &stubStore{}
	svc := newNoteService(t, store, nil)

	require.NoError(t, svc.AddInternal(context.Background(), 3, "note", "ops"))
	require.Len(t, store.reasons, 1)
	assert.Equal(t, InternalReason, store.reasons[0].Name)
}
