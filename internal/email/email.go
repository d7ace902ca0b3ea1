// Package email manages IMAP account records and classified emails.
// Reclassifying an email keeps the previous verdict in an append-only
// history.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned for a missing account or email.
	ErrNotFound = errors.New("email: not found")

	// ErrInvalidInput flags missing mandatory fields.
	ErrInvalidInput = errors.New("email: invalid input")
)

// Account is an IMAP connection record.
type Account struct {
	ID        int64
	Name      string
	Host      string
	Port      int
	Username  string
	Password  string
	Mailbox   string
	CreatedAt time.Time
}

// Classification is the verdict attached to an email.
type Classification struct {
	Label          string
	EmergencyLevel int
	Abstract       string
}

// Email is one classified message.
type Email struct {
	ID         int64
	AccountID  int64
	MessageID  string
	Sender     string
	Subject    string
	ReceivedAt time.Time

	Classification Classification

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HistoryEntry is one superseded classification. Append-only.
type HistoryEntry struct {
	ID         int64
	EmailID    int64
	Superseded Classification
	RecordedAt time.Time
}

// Store is the persistence contract. UpdateClassification writes the new
// verdict and the history row for the old one in a single transaction.
type Store interface {
	CreateAccount(ctx context.Context, a Account) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	CreateEmail(ctx context.Context, e Email) (Email, error)
	GetEmail(ctx context.Context, id int64) (Email, error)
	ListEmails(ctx context.Context, accountID int64) ([]Email, error)
	UpdateClassification(ctx context.Context, emailID int64, next Classification) (Email, error)
	DeleteEmail(ctx context.Context, id int64) error
	HistoryFor(ctx context.Context, emailID int64) ([]HistoryEntry, error)
}

// Service wraps the store with input validation.
type Service struct {
	store Store
	log   *logrus.Logger
}

// NewService constructs a Service.
func NewService(store Store, log *logrus.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("email: store is required")
	}
	if log == nil {
		return nil, errors.New("email: logger is required")
	}
	return &Service{store: store, log: log}, nil
}

// CreateAccount registers an IMAP account record.
func (s *Service) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Host = strings.TrimSpace(a.Host)
	if a.Name == "" || a.Host == "" {
		return Account{}, fmt.Errorf("%w: name and host are required", ErrInvalidInput)
	}
	if a.Port == 0 {
		a.Port = 993
	}
	if a.Mailbox == "" {
		a.Mailbox = "INBOX"
	}
	return s.store.CreateAccount(ctx, a)
}

// ListAccounts returns all registered accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

// DeleteAccount removes an account record.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	return s.store.DeleteAccount(ctx, id)
}

// CreateEmail stores a classified message.
func (s *Service) CreateEmail(ctx context.Context, e Email) (Email, error) {
	if strings.TrimSpace(e.Sender) == "" {
		return Email{}, fmt.Errorf("%w: sender is required", ErrInvalidInput)
	}
	return s.store.CreateEmail(ctx, e)
}

// Get loads one email.
func (s *Service) Get(ctx context.Context, id int64) (Email, error) {
	return s.store.GetEmail(ctx, id)
}

// List returns emails, optionally filtered by account (0 means all).
func (s *Service) List(ctx context.Context, accountID int64) ([]Email, error) {
	return s.store.ListEmails(ctx, accountID)
}

// Reclassify replaces the email's verdict. The previous verdict goes to the
// history in the same transaction; no change ever overwrites it silently.
func (s *Service) Reclassify(ctx context.Context, emailID int64, next Classification) (Email, error) {
	if strings.TrimSpace(next.Label) == "" {
		return Email{}, fmt.Errorf("%w: classification label is required", ErrInvalidInput)
	}
	updated, err := s.store.UpdateClassification(ctx, emailID, next)
	if err != nil {
		return Email{}, err
	}
	s.log.WithFields(logrus.Fields{
		"email_id":       emailID,
		"classification": next.Label,
	}).Info("email reclassified")
	return updated, nil
}

// History returns superseded classifications for one email, oldest first.
func (s *Service) History(ctx context.Context, emailID int64) ([]HistoryEntry, error) {
	if _, err := s.store.GetEmail(ctx, emailID); err != nil {
		return nil, err
	}
	return s.store.HistoryFor(ctx, emailID)
}

// Delete removes one email and its history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteEmail(ctx, id)
}
