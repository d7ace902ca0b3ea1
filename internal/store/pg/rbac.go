package pg

import (
	"context"
	"database/sql"
	"errors"

	"octobre.org/internal/rbac"
)

var _ rbac.Store = (*Store)(nil)

func (s *Store) FindRoleByName(ctx context.Context, name string) (rbac.Role, error) {
	var role rbac.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name
		from roles
		where name = $1
	`, name).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Role{}, rbac.ErrRoleNotFound
	}
	if err != nil {
		return rbac.Role{}, err
	}
	return role, nil
}

func (s *Store) FindAssignment(ctx context.Context, userSub string, roleID int64, ref rbac.ResourceRef) (rbac.Assignment, error) {
	a := rbac.Assignment{UserSub: userSub, RoleID: roleID, Resource: ref}
	err := s.db.QueryRowContext(ctx, `
		select id, created_at
		from role_assignments
		where user_sub = $1 and role_id = $2 and resource_kind = $3 and resource_id = $4
	`, userSub, roleID, ref.Kind, ref.ID).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Assignment{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Assignment{}, err
	}
	return a, nil
}

func (s *Store) CreateAssignment(ctx context.Context, a rbac.Assignment) (rbac.Assignment, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into role_assignments (user_sub, role_id, resource_kind, resource_id)
		values ($1, $2, $3, $4)
		returning id, created_at
	`, a.UserSub, a.RoleID, a.Resource.Kind, a.Resource.ID).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return rbac.Assignment{}, rbac.ErrRoleNotFound
		}
		return rbac.Assignment{}, err
	}
	return a, nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from role_assignments where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) AssignmentsFor(ctx context.Context, userSub string, ref rbac.ResourceRef) ([]rbac.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.role_id, r.name, a.created_at
		from role_assignments a
		join roles r on r.id = a.role_id
		where a.user_sub = $1 and a.resource_kind = $2 and a.resource_id = $3
	`, userSub, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []rbac.Assignment
	for rows.Next() {
		a := rbac.Assignment{UserSub: userSub, Resource: ref}
		if err := rows.Scan(&a.ID, &a.RoleID, &a.RoleName, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *Store) PermissionsForRole(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) ResourceIDsFor(ctx context.Context, userSub, kind string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct resource_id
		from role_assignments
		where user_sub = $1 and resource_kind = $2
		order by resource_id
	`, userSub, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
