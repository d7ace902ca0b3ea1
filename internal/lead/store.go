package lead

import "context"

// Store is the persistence contract for the lead aggregate.
//
// UpsertContact and UpsertCompany are atomic insert-or-update on the natural
// key (email, name) so two concurrent submissions for the same contact cannot
// race. CreateLead writes the lead row and its position/concern links in one
// transaction, and ApplyUpdate commits a diffed update plan together with
// its audit rows or not at all.
type Store interface {
	UpsertContact(ctx context.Context, c Contact) (Contact, error)
	UpsertCompany(ctx context.Context, c Company) (Company, error)

	FindStatusByName(ctx context.Context, name string) (Status, error)
	FindUrgencyByName(ctx context.Context, name string) (Urgency, error)
	FindPackByName(ctx context.Context, name string) (Pack, error)

	EnsurePositions(ctx context.Context, titles []string) ([]Position, error)
	EnsureConcerns(ctx context.Context, labels []string) ([]Concern, error)

	CreateLead(ctx context.Context, l Lead) (Lead, error)
	GetLead(ctx context.Context, id int64) (Lead, error)
	ListLeads(ctx context.Context) ([]Lead, error)

	ApplyUpdate(ctx context.Context, plan UpdatePlan) error
	ModificationsFor(ctx context.Context, leadID int64) ([]ModificationLog, error)
}
