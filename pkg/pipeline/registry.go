package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
)

// Phase tags middleware with the pipeline phase it runs in.
type Phase string

const (
	// PhaseRequest middleware runs before routing.
	PhaseRequest Phase = "request"

	// PhaseResponse middleware runs after the handler or recovery.
	PhaseResponse Phase = "response"
)

var (
	// ErrFrozen is returned when registering after the registry was frozen.
	ErrFrozen = errors.New("pipeline: registry is frozen")

	// ErrUnknownPhase is returned for a phase tag other than request or response.
	ErrUnknownPhase = errors.New("pipeline: unknown middleware phase")
)

// Registry collects middleware and exception handlers during setup. It is
// mutable until Freeze; a Pipeline only ever sees a frozen copy.
type Registry struct {
	mu         sync.Mutex
	request    []api.RequestMiddleware
	response   []api.ResponseMiddleware
	exceptions map[int]api.ExceptionHandler
	frozen     bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{exceptions: make(map[int]api.ExceptionHandler)}
}

// Use appends request middleware. Registration order is execution order.
func (r *Registry) Use(mw api.RequestMiddleware) error {
	if mw == nil {
		return errors.New("pipeline: nil request middleware")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	r.request = append(r.request, mw)
	return nil
}

// UseResponse appends response middleware. Registration order is
// execution order.
func (r *Registry) UseResponse(mw api.ResponseMiddleware) error {
	if mw == nil {
		return errors.New("pipeline: nil response middleware")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	r.response = append(r.response, mw)
	return nil
}

// Register adds mw under the given phase. An empty phase means
// PhaseRequest. mw must be a function with the matching middleware
// signature.
func (r *Registry) Register(phase Phase, mw any) error {
	switch phase {
	case "", PhaseRequest:
		switch fn := mw.(type) {
		case api.RequestMiddleware:
			return r.Use(fn)
		case func(ctx context.Context, req *api.Request) (api.Response, error):
			return r.Use(fn)
		}
	case PhaseResponse:
		switch fn := mw.(type) {
		case api.ResponseMiddleware:
			return r.UseResponse(fn)
		case func(ctx context.Context, req *api.Request, resp api.Response) (api.Response, error):
			return r.UseResponse(fn)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	return fmt.Errorf("pipeline: %T is not %s middleware", mw, phase)
}

// HandleStatus binds handler to a status code. Re-registering a status
// replaces the previous handler.
func (r *Registry) HandleStatus(status int, handler api.ExceptionHandler) error {
	if handler == nil {
		return errors.New("pipeline: nil exception handler")
	}
	if status < 100 || status > 599 {
		return fmt.Errorf("pipeline: invalid status code %d", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	if _, ok := r.exceptions[status]; ok {
		debug.Log("pipeline", "replacing exception handler", "status", status)
	}
	r.exceptions[status] = handler
	return nil
}

// Freeze stops further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Len returns the number of request and response middleware registered.
func (r *Registry) Len() (request, response int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.request), len(r.response)
}

// snapshot returns copies of the registered sequences.
func (r *Registry) snapshot() ([]api.RequestMiddleware, []api.ResponseMiddleware, map[int]api.ExceptionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.RequestMiddleware(nil), r.request...),
		append([]api.ResponseMiddleware(nil), r.response...),
		maps.Clone(r.exceptions)
}
