package rbac

import "context"

// Store describes persistence operations required by the rbac service.
type Store interface {
	// FindRoleByName returns ErrRoleNotFound when no role carries the name.
	FindRoleByName(ctx context.Context, name string) (Role, error)

	// FindAssignment returns ErrNotFound when the exact
	// (user_sub, role_id, resource) tuple does not exist.
	FindAssignment(ctx context.Context, userSub string, roleID int64, ref ResourceRef) (Assignment, error)

	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	DeleteAssignment(ctx context.Context, id int64) error

	// AssignmentsFor lists every assignment the subject holds on the exact
	// resource instance.
	AssignmentsFor(ctx context.Context, userSub string, ref ResourceRef) ([]Assignment, error)

	PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)

	// ResourceIDsFor lists ids of the given kind the subject holds any role on.
	ResourceIDsFor(ctx context.Context, userSub, kind string) ([]int64, error)
}
