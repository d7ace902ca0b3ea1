package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store used to exercise grant/revoke/check logic.
type memStore struct {
	roles       map[string]Role
	rolePerms   map[int64][]Permission
	assignments []Assignment
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		roles:     map[string]Role{},
		rolePerms: map[int64][]Permission{},
		nextID:    1,
	}
}

func (m *memStore) addRole(name string, perms ...string) Role {
	role := Role{ID: m.nextID, Name: name}
	m.nextID++
	m.roles[name] = role
	for _, p := range perms {
		m.rolePerms[role.ID] = append(m.rolePerms[role.ID], Permission{ID: m.nextID, Name: p})
		m.nextID++
	}
	return role
}

func (m *memStore) FindRoleByName(_ context.Context, name string) (Role, error) {
	role, ok := m.roles[name]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (m *memStore) FindAssignment(_ context.Context, userSub string, roleID int64, ref ResourceRef) (Assignment, error) {
	for _, a := range m.assignments {
		if a.UserSub == userSub && a.RoleID == roleID && a.Resource == ref {
			return a, nil
		}
	}
	return Assignment{}, ErrNotFound
}

func (m *memStore) CreateAssignment(_ context.Context, a Assignment) (Assignment, error) {
	a.ID = m.nextID
	m.nextID++
	m.assignments = append(m.assignments, a)
	return a, nil
}

func (m *memStore) DeleteAssignment(_ context.Context, id int64) error {
	for i, a := range m.assignments {
		if a.ID == id {
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) AssignmentsFor(_ context.Context, userSub string, ref ResourceRef) ([]Assignment, error) {
	var out []Assignment
	for _, a := range m.assignments {
		if a.UserSub == userSub && a.Resource == ref {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) PermissionsForRole(_ context.Context, roleID int64) ([]Permission, error) {
	return m.rolePerms[roleID], nil
}

func (m *memStore) ResourceIDsFor(_ context.Context, userSub, kind string) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64
	for _, a := range m.assignments {
		if a.UserSub == userSub && a.Resource.Kind == kind && !seen[a.Resource.ID] {
			seen[a.Resource.ID] = true
			out = append(out, a.Resource.ID)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, NewRegistry("calendar", "lead"))
	require.NoError(t, err)
	return svc
}

func TestGrantIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	svc := newTestService(t, store)
	ctx := context.Background()
	ref := ResourceRef{Kind: "calendar", ID: 7}

	first, err := svc.Grant(ctx, "user-1", "viewer", ref)
	require.NoError(t, err)

	second, err := svc.Grant(ctx, "user-1", "viewer", ref)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.assignments, 1)

	ok, err := svc.Check(ctx, "user-1", PermCalendarRead, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrantUnknownRole(t *testing.T) {
	svc := newTestService(t, newMemStore())

	_, err := svc.Grant(context.Background(), "user-1", "ghost", ResourceRef{Kind: "calendar", ID: 1})
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestGrantUnknownResourceKind(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	svc := newTestService(t, store)

	_, err := svc.Grant(context.Background(), "user-1", "viewer", ResourceRef{Kind: "calandar", ID: 1})
	assert.ErrorIs(t, err, ErrUnknownResourceKind)

	_, err = svc.Check(context.Background(), "user-1", PermCalendarRead, ResourceRef{Kind: "calandar", ID: 1})
	assert.ErrorIs(t, err, ErrUnknownResourceKind)
}

func TestRevokeIsInverseOfGrant(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	svc := newTestService(t, store)
	ctx := context.Background()
	ref := ResourceRef{Kind: "calendar", ID: 3}

	_, err := svc.Grant(ctx, "user-1", "viewer", ref)
	require.NoError(t, err)

	ok, err := svc.Check(ctx, "user-1", PermCalendarRead, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	revoked, err := svc.Revoke(ctx, "user-1", "viewer", ref)
	require.NoError(t, err)
	assert.True(t, revoked)

	ok, err = svc.Check(ctx, "user-1", PermCalendarRead, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeMissingAssignment(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	svc := newTestService(t, store)

	revoked, err := svc.Revoke(context.Background(), "user-1", "viewer", ResourceRef{Kind: "calendar", ID: 3})
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = svc.Revoke(context.Background(), "user-1", "ghost", ResourceRef{Kind: "calendar", ID: 3})
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestCheckIsResourceInstanceScoped(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "user-1", "viewer", ResourceRef{Kind: "calendar", ID: 1})
	require.NoError(t, err)

	ok, err := svc.Check(ctx, "user-1", PermCalendarRead, ResourceRef{Kind: "calendar", ID: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Check(ctx, "user-1", PermCalendarRead, ResourceRef{Kind: "calendar", ID: 2})
	require.NoError(t, err)
	assert.False(t, ok, "role on calendar 1 must not leak to calendar 2")
}

func TestCheckMultipleRolesOnSameResource(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	store.addRole("editor", PermCalendarWrite)
	svc := newTestService(t, store)
	ctx := context.Background()
	ref := ResourceRef{Kind: "calendar", ID: 9}

	_, err := svc.Grant(ctx, "user-1", "viewer", ref)
	require.NoError(t, err)
	_, err = svc.Grant(ctx, "user-1", "editor", ref)
	require.NoError(t, err)

	ok, err := svc.Check(ctx, "user-1", PermCalendarWrite, ref)
	require.NoError(t, err)
	assert.True(t, ok, "check is an OR across all roles held on the resource")
}

func TestCheckNoAssignments(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	svc := newTestService(t, store)

	ok, err := svc.Check(context.Background(), "stranger", PermCalendarRead, ResourceRef{Kind: "calendar", ID: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGlobalResourceRequiresZeroID(t *testing.T) {
	store := newMemStore()
	store.addRole("admin", PermAdminManage)
	svc := newTestService(t, store)

	_, err := svc.Grant(context.Background(), "user-1", "admin", ResourceRef{Kind: GlobalKind, ID: 4})
	assert.ErrorIs(t, err, ErrInvalidInput)

	a, err := svc.Grant(context.Background(), "user-1", "admin", Global)
	require.NoError(t, err)
	assert.Equal(t, Global, a.Resource)
}

func TestResourceIDs(t *testing.T) {
	store := newMemStore()
	store.addRole("viewer", PermCalendarRead)
	store.addRole("editor", PermCalendarWrite)
	svc := newTestService(t, store)
	ctx := context.Background()

	for _, id := range []int64{1, 4} {
		_, err := svc.Grant(ctx, "user-1", "viewer", ResourceRef{Kind: "calendar", ID: id})
		require.NoError(t, err)
	}
	_, err := svc.Grant(ctx, "user-1", "editor", ResourceRef{Kind: "calendar", ID: 4})
	require.NoError(t, err)

	ids, err := svc.ResourceIDs(ctx, "user-1", "calendar")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 4}, ids)
}
