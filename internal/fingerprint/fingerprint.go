// Package fingerprint stores visitor fingerprints and the page reports tied
// to them. Both flows are anonymous; the visitor id is the only key.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrInvalidInput flags a missing visitor id.
var ErrInvalidInput = errors.New("fingerprint: invalid input")

// ErrNotFound is returned when no fingerprint exists for a visitor id.
var ErrNotFound = errors.New("fingerprint: not found")

// Fingerprint is one visitor's recorded browser components.
type Fingerprint struct {
	ID         int64
	VisitorID  string
	Components map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Report is one page view attributed to a known fingerprint.
type Report struct {
	ID            int64
	FingerprintID int64
	Page          string
	CreatedAt     time.Time
}

// Store is the persistence contract. Upsert is atomic on visitor_id.
type Store interface {
	Upsert(ctx context.Context, f Fingerprint) (Fingerprint, error)
	FindByVisitorID(ctx context.Context, visitorID string) (Fingerprint, error)
	CreateReport(ctx context.Context, r Report) (Report, error)
}

// Service records fingerprints and reports.
type Service struct {
	store Store
	log   *logrus.Logger
}

// NewService constructs a Service.
func NewService(store Store, log *logrus.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("fingerprint: store is required")
	}
	if log == nil {
		return nil, errors.New("fingerprint: logger is required")
	}
	return &Service{store: store, log: log}, nil
}

// Record upserts the fingerprint for a visitor id, replacing the stored
// components on repeat visits.
func (s *Service) Record(ctx context.Context, visitorID string, components map[string]any) (Fingerprint, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return Fingerprint{}, fmt.Errorf("%w: visitor_id is required", ErrInvalidInput)
	}
	return s.store.Upsert(ctx, Fingerprint{VisitorID: visitorID, Components: components})
}

// Report attributes a page view to an existing fingerprint. An unknown
// visitor id is logged and dropped rather than failing, so stale clients
// whose fingerprint was never recorded do not see errors.
func (s *Service) Report(ctx context.Context, visitorID, page string) (*Report, error) {
	fp, err := s.store.FindByVisitorID(ctx, visitorID)
	if errors.Is(err, ErrNotFound) {
		s.log.WithField("visitor_id", visitorID).Warn("report for unknown fingerprint dropped")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateReport(ctx, Report{FingerprintID: fp.ID, Page: page})
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return &created, nil
}
