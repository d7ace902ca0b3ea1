// Package note manages free-text annotations on leads, categorised by a
// seeded reason vocabulary.
package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrReasonNotFound is returned for an unknown reason name.
	ErrReasonNotFound = errors.New("note: reason not found")

	// ErrLeadNotFound is returned when the note targets a missing lead.
	ErrLeadNotFound = errors.New("note: lead not found")

	// ErrInvalidInput flags an empty note body.
	ErrInvalidInput = errors.New("note: invalid input")
)

// InternalReason is the seeded reason used for operator notes added through
// the lead update-notes flow.
const InternalReason = "note interne"

// Reason is a seeded note category.
type Reason struct {
	ID   int64
	Name string
}

// Note is one annotation on a lead.
type Note struct {
	ID        int64
	LeadID    int64
	Content   string
	Author    string
	Reason    Reason
	CreatedAt time.Time
}

// CreateRequest is an incoming note.
type CreateRequest struct {
	Content    string
	ReasonName string
	// Recipients optionally get a copy of the note by mail.
	Recipients []string
}

// Store is the persistence contract for notes.
type Store interface {
	FindReasonByName(ctx context.Context, name string) (Reason, error)
	FirstReason(ctx context.Context) (Reason, error)
	CreateReason(ctx context.Context, name string) (Reason, error)
	CreateNote(ctx context.Context, n Note) (Note, error)
	NotesForLead(ctx context.Context, leadID int64) ([]Note, error)
	Reasons(ctx context.Context) ([]Reason, error)
}

// Mailer delivers note copies. Failures are logged and dropped.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service creates and lists notes.
type Service struct {
	store  Store
	log    *logrus.Logger
	mailer Mailer
}

// NewService constructs a Service. mailer may be nil when mail is not
// configured.
func NewService(store Store, log *logrus.Logger, mailer Mailer) (*Service, error) {
	if store == nil {
		return nil, errors.New("note: store is required")
	}
	if log == nil {
		return nil, errors.New("note: logger is required")
	}
	return &Service{store: store, log: log, mailer: mailer}, nil
}

// Create appends a note to a lead. The reason is resolved by name and an
// unknown name is a client error. Recipients, if any, get a best-effort copy.
func (s *Service) Create(ctx context.Context, leadID int64, req CreateRequest, author string) (Note, error) {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return Note{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	reason, err := s.store.FindReasonByName(ctx, req.ReasonName)
	if err != nil {
		return Note{}, err
	}

	created, err := s.store.CreateNote(ctx, Note{
		LeadID:  leadID,
		Content: req.Content,
		Author:  author,
		Reason:  reason,
	})
	if err != nil {
		return Note{}, fmt.Errorf("create note: %w", err)
	}

	for _, to := range req.Recipients {
		s.sendCopy(ctx, to, created)
	}
	return created, nil
}

// AddInternal appends an operator note under the internal reason, creating
// the reason row when the vocabulary has not been seeded yet.
func (s *Service) AddInternal(ctx context.Context, leadID int64, content, author string) error {
	reason, err := s.store.FindReasonByName(ctx, InternalReason)
	if errors.Is(err, ErrReasonNotFound) {
		reason, err = s.store.FirstReason(ctx)
	}
	if errors.Is(err, ErrReasonNotFound) {
		reason, err = s.store.CreateReason(ctx, InternalReason)
	}
	if err != nil {
		return fmt.Errorf("resolve internal reason: %w", err)
	}

	_, err = s.store.CreateNote(ctx, Note{
		LeadID:  leadID,
		Content: content,
		Author:  author,
		Reason:  reason,
	})
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// ListByLead returns all notes on a lead, oldest first.
func (s *Service) ListByLead(ctx context.Context, leadID int64) ([]Note, error) {
	return s.store.NotesForLead(ctx, leadID)
}

// Reasons returns the seeded reason vocabulary.
func (s *Service) Reasons(ctx context.Context) ([]Reason, error) {
	return s.store.Reasons(ctx)
}

func (s *Service) sendCopy(ctx context.Context, to string, n Note) {
	if s.mailer == nil {
		return
	}
	subject := fmt.Sprintf("Note sur le lead %d (%s)", n.LeadID, n.Reason.Name)
	body := fmt.Sprintf("%s\n\n-- %s", n.Content, n.Author)
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.log.WithError(err).WithField("recipient", to).Warn("note copy not sent")
	}
}
