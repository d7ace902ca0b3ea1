package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octobre.org/internal/altcha"
	"octobre.org/internal/lead"
)

// fakeLeadStore is an in-memory lead.Store with seeded vocabularies.
type fakeLeadStore struct {
	contacts  map[string]lead.Contact
	companies map[string]lead.Company
	statuses  map[string]lead.Status
	urgencies map[string]lead.Urgency
	packs     map[string]lead.Pack
	leads     map[int64]lead.Lead
	logs      []lead.ModificationLog
	nextID    int64
}

func newFakeLeadStore() *fakeLeadStore {
	s := &fakeLeadStore{
		contacts:  map[string]lead.Contact{},
		companies: map[string]lead.Company{},
		statuses:  map[string]lead.Status{},
		urgencies: map[string]lead.Urgency{},
		packs:     map[string]lead.Pack{},
		leads:     map[int64]lead.Lead{},
		nextID:    1,
	}
	for _, name := range []string{lead.InitialStatus, "perdu"} {
		s.statuses[name] = lead.Status{ID: s.id(), Name: name}
	}
	for _, name := range []string{lead.UrgencyImmediate, lead.UrgencyThisMonth, lead.DefaultUrgency} {
		s.urgencies[name] = lead.Urgency{ID: s.id(), Name: name}
	}
	for _, name := range []string{lead.PackConformite, lead.PackConfiance, lead.PackCroissance} {
		s.packs[name] = lead.Pack{ID: s.id(), Name: name}
	}
	return s
}

func (s *fakeLeadStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *fakeLeadStore) UpsertContact(_ context.Context, c lead.Contact) (lead.Contact, error) {
	if existing, ok := s.contacts[c.Email]; ok {
		c.ID = existing.ID
	} else {
		c.ID = s.id()
	}
	s.contacts[c.Email] = c
	return c, nil
}

func (s *fakeLeadStore) UpsertCompany(_ context.Context, c lead.Company) (lead.Company, error) {
	if existing, ok := s.companies[c.Name]; ok {
		c.ID = existing.ID
	} else {
		c.ID = s.id()
	}
	s.companies[c.Name] = c
	return c, nil
}

func (s *fakeLeadStore) FindStatusByName(_ context.Context, name string) (lead.Status, error) {
	if st, ok := s.statuses[name]; ok {
		return st, nil
	}
	return lead.Status{}, lead.ErrNotFound
}

func (s *fakeLeadStore) FindUrgencyByName(_ context.Context, name string) (lead.Urgency, error) {
	if u, ok := s.urgencies[name]; ok {
		return u, nil
	}
	return lead.Urgency{}, lead.ErrNotFound
}

func (s *fakeLeadStore) FindPackByName(_ context.Context, name string) (lead.Pack, error) {
	if p, ok := s.packs[name]; ok {
		return p, nil
	}
	return lead.Pack{}, lead.ErrNotFound
}

func (s *fakeLeadStore) EnsurePositions(_ context.Context, titles []string) ([]lead.Position, error) {
	out := make([]lead.Position, 0, len(titles))
	for _, title := range titles {
		out = append(out, lead.Position{ID: s.id(), Title: title})
	}
	return out, nil
}

func (s *fakeLeadStore) EnsureConcerns(_ context.Context, labels []string) ([]lead.Concern, error) {
	out := make([]lead.Concern, 0, len(labels))
	for _, label := range labels {
		out = append(out, lead.Concern{ID: s.id(), Label: label})
	}
	return out, nil
}

func (s *fakeLeadStore) CreateLead(_ context.Context, l lead.Lead) (lead.Lead, error) {
	l.ID = s.id()
	l.CreatedAt = l.SubmittedAt
	l.UpdatedAt = l.SubmittedAt
	s.leads[l.ID] = l
	return l, nil
}

func (s *fakeLeadStore) GetLead(_ context.Context, id int64) (lead.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return lead.Lead{}, lead.ErrNotFound
	}
	return l, nil
}

func (s *fakeLeadStore) ListLeads(_ context.Context) ([]lead.Lead, error) {
	out := make([]lead.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	return out, nil
}

func (s *fakeLeadStore) ApplyUpdate(_ context.Context, plan lead.UpdatePlan) error {
	l, ok := s.leads[plan.LeadID]
	if !ok {
		return lead.ErrNotFound
	}
	if plan.Contact != nil {
		l.Contact = *plan.Contact
	}
	if plan.Company != nil {
		l.Company = *plan.Company
	}
	if plan.ProblemSummary != nil {
		l.ProblemSummary = *plan.ProblemSummary
	}
	if plan.EstimatedUsers != nil {
		l.EstimatedUsers = *plan.EstimatedUsers
	}
	for _, ch := range plan.Changes {
		s.logs = append(s.logs, lead.ModificationLog{
			LeadID: plan.LeadID, Field: ch.Field,
			OldValue: ch.OldValue, NewValue: ch.NewValue,
			ChangedAt: time.Now(),
		})
	}
	l.UpdatedAt = time.Now()
	s.leads[plan.LeadID] = l
	return nil
}

func (s *fakeLeadStore) ModificationsFor(_ context.Context, leadID int64) ([]lead.ModificationLog, error) {
	var out []lead.ModificationLog
	for _, row := range s.logs {
		if row.LeadID == leadID {
			out = append(out, row)
		}
	}
	return out, nil
}

func newLeadTestEnv(t *testing.T) (*testEnv, *lead.Service) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	leadSvc, err := lead.NewService(newFakeLeadStore(), log)
	require.NoError(t, err)

	api := New(Options{
		Log:     log,
		Leads:   leadSvc,
		Altcha:  altcha.NewVerifier("test-hmac-key"),
		Version: "test",
	})
	return &testEnv{api: api, handler: api.Handler()}, leadSvc
}

// The self-service update is pinned by replaying the stored
// (solution, visitor) pair verbatim. The stored solution is an opaque
// credential at that point: it is matched, never re-validated as a live
// challenge, so an edit works long after the original challenge expired.
func TestUpdateLeadReplaysStoredPairWithoutChallengeCheck(t *testing.T) {
	env, leadSvc := newLeadTestEnv(t)

	created, err := leadSvc.Create(context.Background(), lead.Payload{
		Name:        "Alice Martin",
		Email:       "alice@example.org",
		CompanyName: "ACME",
	}, "stale-solution-payload", "v-1")
	require.NoError(t, err)

	body := `{"altcha_solution":"stale-solution-payload","visitor_id":"v-1","problem_summary":"migration RGPD"}`
	rec := env.do(http.MethodPatch, fmt.Sprintf("/v1/leads/%d", created.ID), "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "migration RGPD")

	updated, err := leadSvc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "migration RGPD", updated.ProblemSummary)
}

func TestUpdateLeadWrongVisitorRejected(t *testing.T) {
	env, leadSvc := newLeadTestEnv(t)

	created, err := leadSvc.Create(context.Background(), lead.Payload{
		Name:        "Alice Martin",
		Email:       "alice@example.org",
		CompanyName: "ACME",
	}, "stale-solution-payload", "v-1")
	require.NoError(t, err)

	body := `{"altcha_solution":"stale-solution-payload","visitor_id":"v-2","problem_summary":"migration RGPD"}`
	rec := env.do(http.MethodPatch, fmt.Sprintf("/v1/leads/%d", created.ID), "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "identity mismatch")
}
