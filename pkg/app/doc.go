// Package app assembles a kette application.
//
// An App is a mutable builder used during setup: routes, views,
// blueprints, middleware, exception handlers, and lifecycle listeners are
// registered on it, then Build freezes everything into an immutable
// pipeline.Pipeline that serves requests.
//
//	a := app.New("hello")
//	_ = a.Get("/hello", func(ctx context.Context, req *api.Request, _ api.Params) (api.Response, error) {
//		return api.Text("hi", http.StatusOK), nil
//	})
//	p, err := a.Build()
package app
