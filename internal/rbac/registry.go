package rbac

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds the resource kinds the service knows about. Grants and
// checks against an unregistered kind fail loudly instead of silently
// answering false, which is how a typo like "calandar" surfaces.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]struct{}
}

// NewRegistry creates a registry pre-populated with the global kind and any
// additional kinds given.
func NewRegistry(kinds ...string) *Registry {
	r := &Registry{kinds: map[string]struct{}{GlobalKind: {}}}
	for _, k := range kinds {
		r.Register(k)
	}
	return r
}

// Register adds a resource kind. Blank names are ignored.
func (r *Registry) Register(kind string) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = struct{}{}
}

// Known reports whether the kind has been registered.
func (r *Registry) Known(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
