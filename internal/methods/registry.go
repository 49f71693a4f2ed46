// Package methods holds the permitted JSON-RPC methods and the registry the
// dispatch middleware resolves them from.
package methods

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
)

// SnapOnlyPrefix marks methods only snaps may call.
const SnapOnlyPrefix = "snap_"

// IsSnapOnly reports whether method is restricted to snap callers.
func IsSnapOnly(method string) bool {
	return strings.HasPrefix(method, SnapOnlyPrefix)
}

// Implementation handles one permitted method. It must complete the request
// through next or end, or return an error, which the dispatcher converts to an
// internal error.
type Implementation func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End, h hooks.Map) error

// Handler binds method names to an implementation and the hooks it may use.
type Handler struct {
	MethodNames []string
	HookNames   []string
	// AllowedOrigins restricts the method to the listed origins when non-empty.
	AllowedOrigins []string
	Implementation Implementation
}

// AllowsOrigin reports whether origin passes the handler's origin allowlist.
func (h *Handler) AllowsOrigin(origin string) bool {
	return len(h.AllowedOrigins) == 0 || slices.Contains(h.AllowedOrigins, origin)
}

// Registry maps method names to handlers. It is immutable once built.
type Registry struct {
	handlers map[string]*Handler
	names    []string
}

// NewRegistry indexes handlers by every name they declare. Duplicate names
// and handlers without an implementation are rejected.
func NewRegistry(handlers ...*Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]*Handler)}
	for _, h := range handlers {
		if h.Implementation == nil {
			return nil, errors.Errorf("handler %v has no implementation", h.MethodNames)
		}
		if len(h.MethodNames) == 0 {
			return nil, errors.New("handler has no method names")
		}
		for _, name := range h.MethodNames {
			if _, dup := r.handlers[name]; dup {
				return nil, errors.Errorf("duplicate method %q", name)
			}
			r.handlers[name] = h
			r.names = append(r.names, name)
		}
	}
	slices.Sort(r.names)
	return r, nil
}

// MustRegistry is NewRegistry for static handler sets; it panics on error.
func MustRegistry(handlers ...*Handler) *Registry {
	r, err := NewRegistry(handlers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the handler for method.
func (r *Registry) Lookup(method string) (*Handler, bool) {
	h, ok := r.handlers[method]
	return h, ok
}

// Names returns all registered method names in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}
