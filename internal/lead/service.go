package lead

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers operator-facing mail. Failures are logged and dropped;
// a lead workflow never fails because a notification did not go out.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NoteWriter appends an internal note to a lead.
type NoteWriter interface {
	AddInternal(ctx context.Context, leadID int64, content, author string) error
}

// Service owns the lead lifecycle: scored creation, retrieval and the
// fingerprint-pinned audit-logged update.
type Service struct {
	store    Store
	log      *logrus.Logger
	notifier Notifier
	notes    NoteWriter
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier wires outbound mail for new-lead notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithNoteWriter wires the internal-note collaborator used by UpdateNotes.
func WithNoteWriter(w NoteWriter) Option {
	return func(s *Service) { s.notes = w }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service.
func NewService(store Store, log *logrus.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lead: store is required")
	}
	if log == nil {
		return nil, errors.New("lead: logger is required")
	}
	s := &Service{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create runs the full creation workflow: contact and company upserts,
// scoring, reference-row resolution, persistence of the aggregate in one
// transaction, then a best-effort notification. The altcha solution and the
// visitor id are stored verbatim as the submitter's identity pair.
func (s *Service) Create(ctx context.Context, p Payload, altchaSolution, visitorID string) (Lead, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.CompanyName = strings.TrimSpace(p.CompanyName)
	if p.Name == "" || p.Email == "" || p.CompanyName == "" {
		return Lead{}, fmt.Errorf("%w: name, email and company_name are required", ErrInvalidInput)
	}

	contact, err := s.store.UpsertContact(ctx, Contact{
		Name:     p.Name,
		Email:    p.Email,
		Phone:    p.Phone,
		JobTitle: p.JobTitle,
		Conscent: p.Conscent,
	})
	if err != nil {
		return Lead{}, fmt.Errorf("upsert contact: %w", err)
	}

	company, err := s.store.UpsertCompany(ctx, Company{Name: p.CompanyName, Size: p.CompanySize})
	if err != nil {
		return Lead{}, fmt.Errorf("upsert company: %w", err)
	}

	status, err := s.store.FindStatusByName(ctx, InitialStatus)
	if errors.Is(err, ErrNotFound) {
		return Lead{}, ErrInitialStatusNotConfigured
	}
	if err != nil {
		return Lead{}, fmt.Errorf("resolve status: %w", err)
	}

	urgency, err := s.store.FindUrgencyByName(ctx, p.Urgency)
	if errors.Is(err, ErrNotFound) {
		s.log.WithField("urgency", p.Urgency).Warn("unknown urgency, using default")
		urgency, err = s.store.FindUrgencyByName(ctx, DefaultUrgency)
	}
	if err != nil {
		return Lead{}, fmt.Errorf("resolve urgency: %w", err)
	}

	pack, packErr := s.resolvePack(ctx, RecommendPack(p.Concerns))
	if packErr != nil {
		return Lead{}, packErr
	}

	positions, err := s.store.EnsurePositions(ctx, p.Positions)
	if err != nil {
		return Lead{}, fmt.Errorf("ensure positions: %w", err)
	}
	concerns, err := s.store.EnsureConcerns(ctx, p.Concerns)
	if err != nil {
		return Lead{}, fmt.Errorf("ensure concerns: %w", err)
	}

	now := s.now().UTC()
	l := Lead{
		SubmittedAt:     now,
		EstimatedUsers:  p.EstimatedUsers,
		ProblemSummary:  p.ProblemSummary,
		MaturityScore:   MaturityScore(p),
		AltchaSolution:  altchaSolution,
		VisitorID:       visitorID,
		Contact:         contact,
		Company:         company,
		Status:          status,
		Urgency:         &urgency,
		RecommendedPack: pack,
		Positions:       positions,
		Concerns:        concerns,
	}
	created, err := s.store.CreateLead(ctx, l)
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}

	s.notifyCreated(ctx, created)
	return created, nil
}

// resolvePack loads the recommended pack's reference row, falling back to
// the default pack when the named one is missing. A missing default leaves
// the lead without a pack rather than failing the creation.
func (s *Service) resolvePack(ctx context.Context, name string) (*Pack, error) {
	pack, err := s.store.FindPackByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		s.log.WithField("pack", name).Error("recommended pack is not seeded, falling back")
		pack, err = s.store.FindPackByName(ctx, PackConformite)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve pack: %w", err)
	}
	return &pack, nil
}

func (s *Service) notifyCreated(ctx context.Context, l Lead) {
	if s.notifier == nil {
		return
	}
	subject := "Nouveau lead: " + l.Contact.Name
	body := fmt.Sprintf("Contact: %s <%s>\nEntreprise: %s (%d personnes)\nScore de maturité: %d/5\nRésumé: %s\n",
		l.Contact.Name, l.Contact.Email, l.Company.Name, l.Company.Size, l.MaturityScore, l.ProblemSummary)
	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		s.log.WithError(err).WithField("lead_id", l.ID).Warn("lead notification failed")
	}
}

// Get loads one lead with its relations.
func (s *Service) Get(ctx context.Context, id int64) (Lead, error) {
	return s.store.GetLead(ctx, id)
}

// List loads all leads with their relations.
func (s *Service) List(ctx context.Context) ([]Lead, error) {
	return s.store.ListLeads(ctx)
}

// Modifications returns the audit trail for one lead.
func (s *Service) Modifications(ctx context.Context, leadID int64) ([]ModificationLog, error) {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.store.ModificationsFor(ctx, leadID)
}

// UpdateNotes appends an internal note to the lead on behalf of an
// authenticated operator.
func (s *Service) UpdateNotes(ctx context.Context, leadID int64, content, author string) error {
	if s.notes == nil {
		return errors.New("lead: note writer is not configured")
	}
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return err
	}
	return s.notes.AddInternal(ctx, leadID, content, author)
}

// Update applies a partial, anonymous self-service edit. The caller must
// replay the exact (altcha solution, visitor id) pair stored at creation;
// this is the only check protecting the edit and it is intentionally no
// stronger than that. Every changed field yields one audit row, committed
// atomically with the mutation itself.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Lead, error) {
	current, err := s.store.GetLead(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if req.AltchaSolution != current.AltchaSolution || req.VisitorID != current.VisitorID {
		return Lead{}, ErrIdentityMismatch
	}

	plan, err := s.planUpdate(ctx, current, req)
	if err != nil {
		return Lead{}, err
	}
	if err := s.store.ApplyUpdate(ctx, plan); err != nil {
		return Lead{}, fmt.Errorf("apply update: %w", err)
	}
	return s.store.GetLead(ctx, id)
}

// planUpdate diffs the request against the loaded aggregate and produces the
// exact set of mutations and audit rows to commit. Comparisons are exact,
// with no normalisation.
func (s *Service) planUpdate(ctx context.Context, current Lead, req UpdateRequest) (UpdatePlan, error) {
	plan := UpdatePlan{LeadID: current.ID}

	contact := current.Contact
	contactDirty := false
	diffStr := func(field string, target *string, newV *string) {
		if newV == nil || *newV == *target {
			return
		}
		plan.Changes = append(plan.Changes, FieldChange{Field: field, OldValue: *target, NewValue: *newV})
		*target = *newV
		contactDirty = true
	}
	diffStr("name", &contact.Name, req.Name)
	diffStr("email", &contact.Email, req.Email)
	diffStr("phone", &contact.Phone, req.Phone)
	diffStr("job_title", &contact.JobTitle, req.JobTitle)
	if req.Conscent != nil && *req.Conscent != contact.Conscent {
		plan.Changes = append(plan.Changes, FieldChange{
			Field:    "conscent",
			OldValue: strconv.FormatBool(contact.Conscent),
			NewValue: strconv.FormatBool(*req.Conscent),
		})
		contact.Conscent = *req.Conscent
		contactDirty = true
	}
	if contactDirty {
		plan.Contact = &contact
	}

	company := current.Company
	companyDirty := false
	if req.CompanyName != nil && *req.CompanyName != company.Name {
		plan.Changes = append(plan.Changes, FieldChange{
			Field:    "company_name",
			OldValue: company.Name,
			NewValue: *req.CompanyName,
		})
		company.Name = *req.CompanyName
		companyDirty = true
	}
	if req.CompanySize != nil && *req.CompanySize != company.Size {
		plan.Changes = append(plan.Changes, FieldChange{
			Field:    "company_size",
			OldValue: strconv.Itoa(company.Size),
			NewValue: strconv.Itoa(*req.CompanySize),
		})
		company.Size = *req.CompanySize
		companyDirty = true
	}
	if companyDirty {
		plan.Company = &company
	}

	if req.Positions != nil {
		old := positionTitles(current.Positions)
		if !slices.Equal(old, *req.Positions) {
			plan.Changes = append(plan.Changes, FieldChange{
				Field:    "positions",
				OldValue: fmt.Sprint(old),
				NewValue: fmt.Sprint(*req.Positions),
			})
		}
		resolved, err := s.store.EnsurePositions(ctx, *req.Positions)
		if err != nil {
			return UpdatePlan{}, fmt.Errorf("ensure positions: %w", err)
		}
		ids := make([]int64, len(resolved))
		for i, p := range resolved {
			ids[i] = p.ID
		}
		plan.PositionIDs = &ids
	}

	if req.Concerns != nil {
		old := concernLabels(current.Concerns)
		if !slices.Equal(old, *req.Concerns) {
			plan.Changes = append(plan.Changes, FieldChange{
				Field:    "concerns",
				OldValue: fmt.Sprint(old),
				NewValue: fmt.Sprint(*req.Concerns),
			})
		}
		resolved, err := s.store.EnsureConcerns(ctx, *req.Concerns)
		if err != nil {
			return UpdatePlan{}, fmt.Errorf("ensure concerns: %w", err)
		}
		ids := make([]int64, len(resolved))
		for i, c := range resolved {
			ids[i] = c.ID
		}
		plan.ConcernIDs = &ids
	}

	if req.Urgency != nil {
		urgency, err := s.store.FindUrgencyByName(ctx, *req.Urgency)
		if errors.Is(err, ErrNotFound) {
			return UpdatePlan{}, fmt.Errorf("%w: %q", ErrInvalidUrgency, *req.Urgency)
		}
		if err != nil {
			return UpdatePlan{}, fmt.Errorf("resolve urgency: %w", err)
		}
		if current.Urgency == nil || current.Urgency.ID != urgency.ID {
			oldName := ""
			if current.Urgency != nil {
				oldName = current.Urgency.Name
			}
			plan.Changes = append(plan.Changes, FieldChange{
				Field:    "urgency",
				OldValue: oldName,
				NewValue: urgency.Name,
			})
			plan.UrgencyID = &urgency.ID
		}
	}

	if req.ProblemSummary != nil && *req.ProblemSummary != current.ProblemSummary {
		plan.Changes = append(plan.Changes, FieldChange{
			Field:    "problem_summary",
			OldValue: current.ProblemSummary,
			NewValue: *req.ProblemSummary,
		})
		plan.ProblemSummary = req.ProblemSummary
	}
	if req.EstimatedUsers != nil && *req.EstimatedUsers != current.EstimatedUsers {
		plan.Changes = append(plan.Changes, FieldChange{
			Field:    "estimated_users",
			OldValue: strconv.Itoa(current.EstimatedUsers),
			NewValue: strconv.Itoa(*req.EstimatedUsers),
		})
		plan.EstimatedUsers = req.EstimatedUsers
	}

	return plan, nil
}

func positionTitles(ps []Position) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func concernLabels(cs []Concern) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Label
	}
	return out
}
