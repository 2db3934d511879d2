// Package router maps requests to route-bound handlers.
//
// The pipeline only consumes the [Resolver] capability. [Router] is the
// default implementation, built on the go-chi routing tree so patterns use
// chi syntax: "/users/{id}", "/users/{id:[0-9]+}", "/static/*".
package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
)

// ErrFrozen is returned when a route is added after the router was frozen.
var ErrFrozen = errors.New("router: routes are frozen")

// Methods lists the HTTP methods a route may be bound to.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodDelete,
}

// Route binds a URL pattern and a set of methods to a handler.
type Route struct {
	Pattern string
	Methods []string
	Handler api.Handler
	// Stream marks routes whose handler produces a streaming response.
	Stream bool
}

// Resolver resolves a request to its route and extracted path parameters.
// A request with no matching route fails with a 404 api.Exception.
type Resolver interface {
	Resolve(req *api.Request) (*Route, api.Params, error)
}

// Router is the chi-backed Resolver. Routes are added during setup and the
// router is frozen before serving; Resolve is safe for concurrent use once
// frozen.
type Router struct {
	mu     sync.Mutex
	mux    *chi.Mux
	routes []*Route
	index  map[string]*Route
	frozen bool
}

var _ Resolver = (*Router)(nil)

// New creates an empty router.
func New() *Router {
	return &Router{
		mux:   chi.NewRouter(),
		index: make(map[string]*Route),
	}
}

// Add registers a route. Methods default to GET. Re-registering the same
// pattern and method replaces the earlier binding.
func (r *Router) Add(route Route) error {
	route, err := normalize(route)
	if err != nil {
		return err
	}
	methods := route.Methods

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}

	bound := &route
	for _, m := range methods {
		r.mux.Method(m, route.Pattern, placeholder)
		r.index[routeKey(m, route.Pattern)] = bound
	}
	r.routes = append(r.routes, bound)

	debug.Log("router", "route added", "pattern", route.Pattern, "methods", methods, "stream", route.Stream)
	return nil
}

// Freeze prevents further registration.
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Route, len(r.routes))
	for i, rt := range r.routes {
		out[i] = *rt
	}
	return out
}

// HasStream reports whether any registered route streams.
func (r *Router) HasStream() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.routes {
		if rt.Stream {
			return true
		}
	}
	return false
}

// Resolve matches the request method and path against the routing tree.
func (r *Router) Resolve(req *api.Request) (*Route, api.Params, error) {
	path := req.Path
	if path == "" {
		path = "/"
	}

	rctx := chi.NewRouteContext()
	if !r.mux.Match(rctx, req.Method, path) || len(rctx.RoutePatterns) == 0 {
		return nil, nil, notFound(req)
	}

	// Routes are never mounted as subrouters, so the last pattern is the
	// one registered with Add.
	pattern := rctx.RoutePatterns[len(rctx.RoutePatterns)-1]
	route, ok := r.index[routeKey(req.Method, pattern)]
	if !ok {
		return nil, nil, notFound(req)
	}

	params := make(api.Params, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}

	debug.Log("router", "route resolved", "method", req.Method, "path", req.Path, "pattern", pattern)
	return route, params, nil
}

// Validate reports the error Add would return for route on an open router.
func Validate(route Route) error {
	_, err := normalize(route)
	return err
}

func normalize(route Route) (Route, error) {
	if route.Handler == nil {
		return route, fmt.Errorf("router: nil handler for %q", route.Pattern)
	}
	if !strings.HasPrefix(route.Pattern, "/") {
		return route, fmt.Errorf("router: pattern %q must begin with '/'", route.Pattern)
	}
	if len(route.Methods) == 0 {
		route.Methods = []string{http.MethodGet}
	}

	methods := make([]string, 0, len(route.Methods))
	for _, m := range route.Methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if !knownMethod(m) {
			return route, fmt.Errorf("router: unsupported method %q for %q", m, route.Pattern)
		}
		methods = append(methods, m)
	}
	route.Methods = methods
	return route, nil
}

func notFound(req *api.Request) error {
	return api.NotFound(fmt.Sprintf("%s %s not found", req.Method, req.Path))
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

func knownMethod(m string) bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// placeholder fills the chi endpoint slot; the router never serves through
// chi, it only uses the tree for matching.
var placeholder = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotImplemented)
})
