package api

import "context"

// Handler serves a routed request. It must return a non-nil Response or an
// error; returning a StatusError selects exception recovery by status code.
type Handler func(ctx context.Context, req *Request, params Params) (Response, error)

// RequestMiddleware runs before routing. Returning a non-nil Response
// short-circuits the pipeline: the response is dispatched as is and no
// later phase runs.
type RequestMiddleware func(ctx context.Context, req *Request) (Response, error)

// ResponseMiddleware runs after the handler (or recovery) with the current
// response. Returning a non-nil *HTTPResponse replaces the current response
// and stops the remaining response middleware.
type ResponseMiddleware func(ctx context.Context, req *Request, resp Response) (Response, error)

// ExceptionHandler renders a StatusError. A returned response that keeps the
// default 200 status is assigned the exception's status.
type ExceptionHandler func(ctx context.Context, req *Request, err error) (Response, error)
