package lead

import "time"

// Contact is a person attached to a lead, keyed by email.
type Contact struct {
	ID       int64
	Name     string
	Email    string
	Phone    string
	JobTitle string
	Conscent bool
}

// Company is the contact's organisation, keyed by name. Size 0 means unknown.
type Company struct {
	ID   int64
	Name string
	Size int
}

// Status is a seeded lifecycle state such as "nouveau".
type Status struct {
	ID   int64
	Name string
}

// Urgency is a seeded time-horizon bucket such as "immédiat".
type Urgency struct {
	ID   int64
	Name string
}

// Pack is a seeded product offering recommended to the lead.
type Pack struct {
	ID   int64
	Name string
}

// Position is a job role the lead wants to cover.
type Position struct {
	ID    int64
	Title string
}

// Concern is a stated pain point, matched by label.
type Concern struct {
	ID    int64
	Label string
}

// Lead is the central aggregate. Contact, Company and Status are always
// loaded; Urgency and RecommendedPack may be nil.
type Lead struct {
	ID             int64
	SubmittedAt    time.Time
	EstimatedUsers int
	ProblemSummary string
	MaturityScore  int

	// Anonymous identity pair captured at creation. Self-service updates
	// must replay it verbatim.
	AltchaSolution string
	VisitorID      string

	Contact         Contact
	Company         Company
	Status          Status
	Urgency         *Urgency
	RecommendedPack *Pack
	Positions       []Position
	Concerns        []Concern

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payload is the raw lead submission.
type Payload struct {
	Name     string
	Email    string
	Phone    string
	JobTitle string
	Conscent bool

	CompanyName string
	CompanySize int

	Positions []string
	Concerns  []string

	ProblemSummary string
	EstimatedUsers int
	Urgency        string
}

// UpdateRequest carries a partial edit of a lead. Nil fields are left
// untouched. AltchaSolution and VisitorID must match the pair stored at
// creation time.
type UpdateRequest struct {
	AltchaSolution string
	VisitorID      string

	Name     *string
	Email    *string
	Phone    *string
	JobTitle *string
	Conscent *bool

	CompanyName *string
	CompanySize *int

	Positions *[]string
	Concerns  *[]string

	Urgency        *string
	ProblemSummary *string
	EstimatedUsers *int
}

// FieldChange is one pending audit row: the field's stored name and the
// exact old and new values rendered as strings.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// ModificationLog is a persisted audit row. Append-only.
type ModificationLog struct {
	ID        int64
	LeadID    int64
	Field     string
	OldValue  string
	NewValue  string
	ChangedAt time.Time
}

// UpdatePlan is the outcome of diffing an UpdateRequest against the loaded
// aggregate. The store applies the whole plan in one transaction so the
// audit rows and the mutations they describe cannot diverge.
type UpdatePlan struct {
	LeadID int64

	Contact *Contact
	Company *Company

	UrgencyID      *int64
	ProblemSummary *string
	EstimatedUsers *int

	// Full replacements when non-nil.
	PositionIDs *[]int64
	ConcernIDs  *[]int64

	Changes []FieldChange
}
