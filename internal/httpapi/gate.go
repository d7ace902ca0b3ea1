package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"octobre.org/internal/rbac"
)

// requirePermission guards a route with a resource-instance permission
// check. permission and resourceName are fixed at construction so the same
// gate serves any route.
//
// With a resourceName the gate reads the "{resourceName}_id" path
// parameter; a route wired without that parameter is a configuration error
// and fails the request with a 500 rather than silently passing. An empty
// resourceName checks the global pseudo-resource instead.
func (a *API) requirePermission(permission, resourceName string, next http.Handler) http.Handler {
	param := ""
	if resourceName != "" {
		param = resourceName + "_id"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := SubjectFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		ref := rbac.Global
		if resourceName != "" {
			raw := r.PathValue(param)
			if raw == "" {
				a.log.WithFields(map[string]any{
					"path":  r.URL.Path,
					"param": param,
				}).Error("permission gate: route is missing its resource id parameter")
				writeError(w, r, http.StatusInternalServerError, "route configuration error")
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, r, http.StatusBadRequest, "invalid "+param)
				return
			}
			ref = rbac.ResourceRef{Kind: resourceName, ID: id}
		}

		allowed, err := a.rbac.Check(r.Context(), sub, permission, ref)
		if err != nil {
			if errors.Is(err, rbac.ErrUnknownResourceKind) {
				a.log.WithError(err).Error("permission gate: unknown resource kind")
				writeError(w, r, http.StatusInternalServerError, "route configuration error")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authorization check failed")
			return
		}
		if !allowed {
			writeError(w, r, http.StatusForbidden, "permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}
