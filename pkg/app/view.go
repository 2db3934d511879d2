package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/router"
)

// Views are values that serve several HTTP methods on one URL. AddView
// binds one route per method interface the view implements.
type (
	GetView interface {
		Get(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
	PostView interface {
		Post(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
	PutView interface {
		Put(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
	PatchView interface {
		Patch(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
	DeleteView interface {
		Delete(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
	HeadView interface {
		Head(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
	OptionsView interface {
		Options(ctx context.Context, req *api.Request, params api.Params) (api.Response, error)
	}
)

// viewHandlers returns the handlers a view implements, keyed by method, in
// the router's method order.
func viewHandlers(view any) ([]string, map[string]api.Handler) {
	handlers := make(map[string]api.Handler)
	if v, ok := view.(GetView); ok {
		handlers[http.MethodGet] = v.Get
	}
	if v, ok := view.(PostView); ok {
		handlers[http.MethodPost] = v.Post
	}
	if v, ok := view.(PutView); ok {
		handlers[http.MethodPut] = v.Put
	}
	if v, ok := view.(PatchView); ok {
		handlers[http.MethodPatch] = v.Patch
	}
	if v, ok := view.(DeleteView); ok {
		handlers[http.MethodDelete] = v.Delete
	}
	if v, ok := view.(HeadView); ok {
		handlers[http.MethodHead] = v.Head
	}
	if v, ok := view.(OptionsView); ok {
		handlers[http.MethodOptions] = v.Options
	}

	var methods []string
	for _, m := range router.Methods {
		if _, ok := handlers[m]; ok {
			methods = append(methods, m)
		}
	}
	return methods, handlers
}

// viewRoutes returns the validated routes for view, one per method.
func viewRoutes(url string, view any) ([]router.Route, error) {
	methods, handlers := viewHandlers(view)
	if len(methods) == 0 {
		return nil, fmt.Errorf("app: view %T implements no HTTP method", view)
	}
	routes := make([]router.Route, 0, len(methods))
	for _, m := range methods {
		r := router.Route{Pattern: url, Handler: handlers[m], Methods: []string{m}}
		if err := router.Validate(r); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// AddView registers one route per HTTP method view implements. Nothing is
// registered when any of them is invalid.
func (a *App) AddView(url string, view any) error {
	routes, err := viewRoutes(url, view)
	if err != nil {
		return err
	}
	for _, r := range routes {
		if err := a.addRoute(r); err != nil {
			return err
		}
	}
	return nil
}
