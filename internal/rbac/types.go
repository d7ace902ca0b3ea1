// Package rbac implements resource-instance scoped role based access control.
//
// Assignments bind a subject (the OIDC `sub` claim) to a role on one concrete
// resource instance, so holding a role on calendar 1 says nothing about
// calendar 2. A global pseudo-resource carries system-wide roles.
package rbac

import "time"

// Permission is a named capability, e.g. "calendar:write". Unique by name.
type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Role bundles permissions under a name.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Assignment ties a subject to a role on one resource instance.
type Assignment struct {
	ID        int64       `json:"id"`
	UserSub   string      `json:"user_sub"`
	RoleID    int64       `json:"role_id"`
	RoleName  string      `json:"role_name,omitempty"`
	Resource  ResourceRef `json:"resource"`
	CreatedAt time.Time   `json:"created_at"`
}

// ResourceRef identifies one resource instance by kind and id.
type ResourceRef struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// GlobalKind tags system-wide assignments that are not tied to any instance.
const GlobalKind = "global"

// Global is the pseudo-resource used for system-wide permission checks.
var Global = ResourceRef{Kind: GlobalKind, ID: 0}

// Well-known permission names.
const (
	PermAdminManage   = "admin:manage"
	PermCalendarRead  = "calendar:read"
	PermCalendarWrite = "calendar:write"
)

// RoleOwner is granted automatically to the creator of a calendar.
const RoleOwner = "owner"
