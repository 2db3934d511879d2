package transport

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rhuss/kette/pkg/api"
)

const (
	// RequestIDHeader is the header carrying the request ID in both
	// directions.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the request annotation holding the request ID.
	RequestIDKey = "request_id"
)

// RequestID returns request middleware that assigns a unique request ID to
// each request. An ID already on the context (set by the HTTP adapter) or
// in the X-Request-ID header is reused; otherwise a new UUID is generated.
//
// The ID is stored as the request_id annotation and in the request header,
// so later phases read it with RequestIDFromRequest.
func RequestID() api.RequestMiddleware {
	return func(ctx context.Context, req *api.Request) (api.Response, error) {
		id := RequestIDFromContext(ctx)
		if id == "" && req.Header != nil {
			id = req.Header.Get(RequestIDHeader)
		}
		if id == "" {
			id = uuid.NewString()
		}
		req.Set(RequestIDKey, id)
		if req.Header != nil {
			req.Header.Set(RequestIDHeader, id)
		}
		return nil, nil
	}
}

// EchoRequestID returns response middleware that copies the request ID
// onto the outgoing response header.
func EchoRequestID() api.ResponseMiddleware {
	return func(ctx context.Context, req *api.Request, resp api.Response) (api.Response, error) {
		id := RequestIDFromRequest(req)
		if id == "" {
			return nil, nil
		}
		switch r := resp.(type) {
		case *api.HTTPResponse:
			if r.Header == nil {
				r.Header = make(http.Header)
			}
			r.Header.Set(RequestIDHeader, id)
		case *api.StreamingResponse:
			if r.Header == nil {
				r.Header = make(http.Header)
			}
			r.Header.Set(RequestIDHeader, id)
		}
		return nil, nil
	}
}

// RequestIDFromRequest returns the ID assigned by RequestID, or "".
func RequestIDFromRequest(req *api.Request) string {
	return req.String(RequestIDKey)
}
