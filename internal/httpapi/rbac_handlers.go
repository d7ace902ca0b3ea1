package httpapi

import (
	"errors"
	"net/http"

	"octobre.org/internal/audit"
	"octobre.org/internal/rbac"
)

type grantRequest struct {
	UserSub      string `json:"user_sub"`
	RoleName     string `json:"role_name"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
}

type assignmentResponse struct {
	ID           int64  `json:"id"`
	UserSub      string `json:"user_sub"`
	RoleName     string `json:"role_name"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
}

func toAssignmentResponse(a rbac.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:           a.ID,
		UserSub:      a.UserSub,
		RoleName:     a.RoleName,
		ResourceKind: a.Resource.Kind,
		ResourceID:   a.Resource.ID,
	}
}

func (req grantRequest) ref() rbac.ResourceRef {
	if req.ResourceKind == "" {
		return rbac.Global
	}
	return rbac.ResourceRef{Kind: req.ResourceKind, ID: req.ResourceID}
}

func (a *API) grantRole(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.rbac.Grant(r.Context(), req.UserSub, req.RoleName, req.ref())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	actor, _ := SubjectFromContext(r.Context())
	_ = audit.LogEvent(r.Context(), "rbac.grant", actor, map[string]any{
		"user_sub":      assignment.UserSub,
		"role_name":     assignment.RoleName,
		"resource_kind": assignment.Resource.Kind,
		"resource_id":   assignment.Resource.ID,
	})
	writeJSON(w, http.StatusCreated, toAssignmentResponse(assignment))
}

func (a *API) revokeRole(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	revoked, err := a.rbac.Revoke(r.Context(), req.UserSub, req.RoleName, req.ref())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	actor, _ := SubjectFromContext(r.Context())
	_ = audit.LogEvent(r.Context(), "rbac.revoke", actor, map[string]any{
		"user_sub":      req.UserSub,
		"role_name":     req.RoleName,
		"resource_kind": req.ref().Kind,
		"resource_id":   req.ref().ID,
		"revoked":       revoked,
	})
	writeJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
}

func handleRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrRoleNotFound),
		errors.Is(err, rbac.ErrUnknownResourceKind),
		errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "rbac operation failed")
	}
}
