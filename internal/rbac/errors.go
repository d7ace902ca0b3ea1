package rbac

import "errors"

var (
	ErrRoleNotFound        = errors.New("rbac: role not found")
	ErrNotFound            = errors.New("rbac: not found")
	ErrUnknownResourceKind = errors.New("rbac: unknown resource kind")
	ErrInvalidInput        = errors.New("rbac: invalid input")
)
