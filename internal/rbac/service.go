package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service answers "does subject X hold permission P on resource (kind, id)?"
// and manages the grants behind that answer.
type Service struct {
	store    Store
	registry *Registry
}

// NewService constructs a Service. The registry decides which resource kinds
// are accepted by Grant, Revoke and Check.
func NewService(store Store, registry *Registry) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{store: store, registry: registry}, nil
}

func (s *Service) validateRef(ref ResourceRef) error {
	if strings.TrimSpace(ref.Kind) == "" {
		return fmt.Errorf("%w: resource kind is required", ErrInvalidInput)
	}
	if !s.registry.Known(ref.Kind) {
		return fmt.Errorf("%w: %q", ErrUnknownResourceKind, ref.Kind)
	}
	if ref.Kind == GlobalKind && ref.ID != 0 {
		return fmt.Errorf("%w: global resource id must be 0", ErrInvalidInput)
	}
	return nil
}

// Grant assigns roleName to userSub on ref. Granting an already held tuple is
// idempotent and returns the existing assignment untouched.
func (s *Service) Grant(ctx context.Context, userSub, roleName string, ref ResourceRef) (Assignment, error) {
	userSub = strings.TrimSpace(userSub)
	roleName = strings.TrimSpace(roleName)
	if userSub == "" || roleName == "" {
		return Assignment{}, fmt.Errorf("%w: user_sub and role_name are required", ErrInvalidInput)
	}
	if err := s.validateRef(ref); err != nil {
		return Assignment{}, err
	}

	role, err := s.store.FindRoleByName(ctx, roleName)
	if err != nil {
		return Assignment{}, err
	}

	existing, err := s.store.FindAssignment(ctx, userSub, role.ID, ref)
	if err == nil {
		existing.RoleName = role.Name
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Assignment{}, err
	}

	created, err := s.store.CreateAssignment(ctx, Assignment{
		UserSub:  userSub,
		RoleID:   role.ID,
		Resource: ref,
	})
	if err != nil {
		return Assignment{}, err
	}
	created.RoleName = role.Name
	return created, nil
}

// Revoke removes the assignment for the exact tuple. It reports false when
// either the role or the assignment does not exist.
func (s *Service) Revoke(ctx context.Context, userSub, roleName string, ref ResourceRef) (bool, error) {
	if err := s.validateRef(ref); err != nil {
		return false, err
	}

	role, err := s.store.FindRoleByName(ctx, roleName)
	if errors.Is(err, ErrRoleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	assignment, err := s.store.FindAssignment(ctx, userSub, role.ID, ref)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.store.DeleteAssignment(ctx, assignment.ID); err != nil {
		return false, err
	}
	return true, nil
}

// Check reports whether any role userSub holds on ref carries permissionName.
// No assignments means false.
func (s *Service) Check(ctx context.Context, userSub, permissionName string, ref ResourceRef) (bool, error) {
	if err := s.validateRef(ref); err != nil {
		return false, err
	}

	assignments, err := s.store.AssignmentsFor(ctx, userSub, ref)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		perms, err := s.store.PermissionsForRole(ctx, a.RoleID)
		if err != nil {
			return false, err
		}
		for _, p := range perms {
			if p.Name == permissionName {
				return true, nil
			}
		}
	}
	return false, nil
}

// ResourceIDs lists ids of the given kind the subject holds any role on.
func (s *Service) ResourceIDs(ctx context.Context, userSub, kind string) ([]int64, error) {
	if !s.registry.Known(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceKind, kind)
	}
	return s.store.ResourceIDsFor(ctx, userSub, kind)
}
