package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/router"
)

// Blueprint groups routes under a URL prefix. Its middleware and exception
// handlers apply application-wide once registered, in the order the
// blueprint declared them.
type Blueprint struct {
	name       string
	prefix     string
	routes     []router.Route
	views      []blueprintView
	request    []api.RequestMiddleware
	response   []api.ResponseMiddleware
	exceptions []blueprintException
}

type blueprintView struct {
	url  string
	view any
}

type blueprintException struct {
	status  int
	handler api.ExceptionHandler
}

// NewBlueprint creates a blueprint. prefix may be empty.
func NewBlueprint(name, prefix string) *Blueprint {
	return &Blueprint{name: name, prefix: strings.TrimSuffix(prefix, "/")}
}

// Name returns the blueprint name.
func (b *Blueprint) Name() string { return b.name }

// Prefix returns the URL prefix applied to the blueprint's routes.
func (b *Blueprint) Prefix() string { return b.prefix }

// Route binds handler to url under the prefix.
func (b *Blueprint) Route(url string, handler api.Handler, methods ...string) {
	b.routes = append(b.routes, router.Route{Pattern: url, Handler: handler, Methods: methods})
}

// Stream binds a streaming handler to url under the prefix.
func (b *Blueprint) Stream(url string, handler api.Handler, methods ...string) {
	b.routes = append(b.routes, router.Route{Pattern: url, Handler: handler, Methods: methods, Stream: true})
}

// Get binds handler to GET url.
func (b *Blueprint) Get(url string, handler api.Handler) { b.Route(url, handler, http.MethodGet) }

// Post binds handler to POST url.
func (b *Blueprint) Post(url string, handler api.Handler) { b.Route(url, handler, http.MethodPost) }

// Put binds handler to PUT url.
func (b *Blueprint) Put(url string, handler api.Handler) { b.Route(url, handler, http.MethodPut) }

// Patch binds handler to PATCH url.
func (b *Blueprint) Patch(url string, handler api.Handler) { b.Route(url, handler, http.MethodPatch) }

// Delete binds handler to DELETE url.
func (b *Blueprint) Delete(url string, handler api.Handler) { b.Route(url, handler, http.MethodDelete) }

// AddView binds a view under the prefix.
func (b *Blueprint) AddView(url string, view any) {
	b.views = append(b.views, blueprintView{url: url, view: view})
}

// Use adds request middleware.
func (b *Blueprint) Use(mw api.RequestMiddleware) { b.request = append(b.request, mw) }

// UseResponse adds response middleware.
func (b *Blueprint) UseResponse(mw api.ResponseMiddleware) { b.response = append(b.response, mw) }

// HandleStatus binds an exception handler to a status code.
func (b *Blueprint) HandleStatus(status int, handler api.ExceptionHandler) {
	b.exceptions = append(b.exceptions, blueprintException{status: status, handler: handler})
}

// validate checks every entry so register only runs on a blueprint that
// can be applied in full.
func (b *Blueprint) validate() error {
	var errs []error
	for _, r := range b.routes {
		r.Pattern = b.join(r.Pattern)
		errs = append(errs, router.Validate(r))
	}
	for _, v := range b.views {
		_, err := viewRoutes(b.join(v.url), v.view)
		errs = append(errs, err)
	}
	for i, mw := range b.request {
		if mw == nil {
			errs = append(errs, fmt.Errorf("app: blueprint %q: nil request middleware at %d", b.name, i))
		}
	}
	for i, mw := range b.response {
		if mw == nil {
			errs = append(errs, fmt.Errorf("app: blueprint %q: nil response middleware at %d", b.name, i))
		}
	}
	for _, e := range b.exceptions {
		if e.handler == nil {
			errs = append(errs, fmt.Errorf("app: blueprint %q: nil exception handler for %d", b.name, e.status))
		}
		if e.status < 100 || e.status > 599 {
			errs = append(errs, fmt.Errorf("app: blueprint %q: invalid status code %d", b.name, e.status))
		}
	}
	return errors.Join(errs...)
}

// register copies the blueprint into a. All errors are joined so a broken
// blueprint reports every bad registration at once.
func (b *Blueprint) register(a *App) error {
	var errs []error
	for _, r := range b.routes {
		r.Pattern = b.join(r.Pattern)
		errs = append(errs, a.addRoute(r))
	}
	for _, v := range b.views {
		errs = append(errs, a.AddView(b.join(v.url), v.view))
	}
	for _, mw := range b.request {
		errs = append(errs, a.Use(mw))
	}
	for _, mw := range b.response {
		errs = append(errs, a.UseResponse(mw))
	}
	for _, e := range b.exceptions {
		errs = append(errs, a.HandleStatus(e.status, e.handler))
	}
	return errors.Join(errs...)
}

func (b *Blueprint) join(url string) string {
	if b.prefix == "" {
		return url
	}
	if url == "" || url == "/" {
		return b.prefix
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return b.prefix + url
}
