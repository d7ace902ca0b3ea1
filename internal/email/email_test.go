package email

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	accounts map[int64]Account
	emails   map[int64]Email
	history  []HistoryEntry
	nextID   int64
}

func newStubStore() *stubStore {
	return &stubStore{accounts: map[int64]Account{}, emails: map[int64]Email{}}
}

func (s *stubStore) CreateAccount(_ context.Context, a Account) (Account, error) {
	s.nextID++
	a.ID = s.nextID
	s.accounts[a.ID] = a
	return a, nil
}

func (s *stubStore) ListAccounts(_ context.Context) ([]Account, error) {
	var out []Account
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *stubStore) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *stubStore) CreateEmail(_ context.Context, e Email) (Email, error) {
	s.nextID++
	e.ID = s.nextID
	s.emails[e.ID] = e
	return e, nil
}

func (s *stubStore) GetEmail(_ context.Context, id int64) (Email, error) {
	e, ok := s.emails[id]
	if !ok {
		return Email{}, ErrNotFound
	}
	return e, nil
}

func (s *stubStore) ListEmails(_ context.Context, accountID int64) ([]Email, error) {
	var out []Email
	for _, e := range s.emails {
		if accountID == 0 || e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateClassification(_ context.Context, emailID int64, next Classification) (Email, error) {
	e, ok := s.emails[emailID]
	if !ok {
		return Email{}, ErrNotFound
	}
	s.nextID++
	s.history = append(s.history, HistoryEntry{
		ID:         s.nextID,
		EmailID:    emailID,
		Superseded: e.Classification,
	})
	e.Classification = next
	s.emails[emailID] = e
	return e, nil
}

func (s *stubStore) DeleteEmail(_ context.Context, id int64) error {
	if _, ok := s.emails[id]; !ok {
		return ErrNotFound
	}
	delete(s.emails, id)
	return nil
}

func (s *stubStore) HistoryFor(_ context.Context, emailID int64) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for _, h := range s.history {
		if h.EmailID == emailID {
			out = append(out, h)
		}
	}
	return out, nil
}

func newEmailService(t *testing.T, store Store) *Service {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc, err := NewService(store, log)
	require.NoError(t, err)
	return svc
}

func TestCreateAccountDefaults(t *testing.T) {
	svc := newEmailService(t, newStubStore())

	a, err := svc.CreateAccount(context.Background(), Account{Name: "support", Host: "imap.example.org"})
	require.NoError(t, err)
	assert.Equal(t, 993, a.Port)
	assert.Equal(t, "INBOX", a.Mailbox)
}

func TestCreateAccountValidation(t *testing.T) {
	svc := newEmailService(t, newStubStore())

	_, err := svc.CreateAccount(context.Background(), Account{Name: " ", Host: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReclassifyKeepsHistory(t *testing.T) {
	store := newStubStore()
	svc := newEmailService(t, store)
	ctx := context.Background()

	created, err := svc.CreateEmail(ctx, Email{
		Sender:         "client@example.org",
		Subject:        "incident",
		Classification: Classification{Label: "support", EmergencyLevel: 1},
	})
	require.NoError(t, err)

	updated, err := svc.Reclassify(ctx, created.ID, Classification{Label: "urgent", EmergencyLevel: 3, Abstract: "prod down"})
	require.NoError(t, err)
	assert.Equal(t, "urgent", updated.Classification.Label)

	history, err := svc.History(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "support", history[0].Superseded.Label)
	assert.Equal(t, 1, history[0].Superseded.EmergencyLevel)
}

func TestReclassifyValidation(t *testing.T) {
	svc := newEmailService(t, newStubStore())

	_, err := svc.Reclassify(context.Background(), 1, Classification{Label: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHistoryUnknownEmail(t *testing.T) {
	svc := newEmailService(t, newStubStore())

	_, err := svc.History(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}
