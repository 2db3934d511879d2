package transport

import (
	"context"

	"github.com/rhuss/kette/pkg/api"
)

// Chain composes request middleware into one. The members run in order
// and the first non-nil response or error ends the chain.
func Chain(middlewares ...api.RequestMiddleware) api.RequestMiddleware {
	return func(ctx context.Context, req *api.Request) (api.Response, error) {
		for _, mw := range middlewares {
			resp, err := mw(ctx, req)
			if err != nil || !api.IsEmpty(resp) {
				return resp, err
			}
		}
		return nil, nil
	}
}

// requestIDKeyType is the context key type for request IDs.
type requestIDKeyType struct{}

// requestIDKey is the context key for storing and retrieving request IDs.
var requestIDKey = requestIDKeyType{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
