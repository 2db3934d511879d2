package pipeline

import (
	"context"

	"github.com/rhuss/kette/pkg/api"
)

// SyncHandler adapts a context-free function that cannot fail into a
// Handler.
func SyncHandler(fn func(req *api.Request, params api.Params) api.Response) api.Handler {
	return func(_ context.Context, req *api.Request, params api.Params) (api.Response, error) {
		return fn(req, params), nil
	}
}

// SyncRequest adapts a context-free function into request middleware.
// Returning nil passes control to the next middleware.
func SyncRequest(fn func(req *api.Request) api.Response) api.RequestMiddleware {
	return func(_ context.Context, req *api.Request) (api.Response, error) {
		return fn(req), nil
	}
}

// SyncResponse adapts a context-free function into response middleware.
func SyncResponse(fn func(req *api.Request, resp api.Response) api.Response) api.ResponseMiddleware {
	return func(_ context.Context, req *api.Request, resp api.Response) (api.Response, error) {
		return fn(req, resp), nil
	}
}

// SyncExceptionHandler adapts a context-free function into an
// ExceptionHandler.
func SyncExceptionHandler(fn func(req *api.Request, err error) api.Response) api.ExceptionHandler {
	return func(_ context.Context, req *api.Request, err error) (api.Response, error) {
		return fn(req, err), nil
	}
}
