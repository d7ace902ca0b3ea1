package httpapi

import (
	"errors"
	"net/http"
	"strings"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// isPublic reports whether the request skips bearer authentication.
// The anonymous lead, fingerprint and report flows are ALTCHA-gated in
// their handlers instead.
func isPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics", "/altcha-challenge", "/v1/info", "/":
		return true
	}
	switch r.Method {
	case http.MethodPost:
		switch r.URL.Path {
		case "/v1/leads", "/v1/fingerprints", "/v1/reports":
			return true
		}
	case http.MethodPatch:
		// self-service lead update: /v1/leads/{id}, pinned by the stored
		// fingerprint pair rather than a bearer token
		rest := strings.TrimPrefix(r.URL.Path, "/v1/leads/")
		if rest != r.URL.Path && rest != "" && !strings.Contains(rest, "/") {
			return true
		}
	}
	return false
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		sub, err := a.verifier.Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithSubject(r.Context(), sub)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
