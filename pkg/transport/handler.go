package transport

import (
	"context"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/pipeline"
)

// Dispatcher runs a request through an application and delivers the result
// through exactly one of write or stream. *pipeline.Pipeline implements it.
type Dispatcher interface {
	Handle(ctx context.Context, req *api.Request, write pipeline.WriteFunc, stream pipeline.StreamFunc)
}

// DispatcherFunc is an adapter that allows using an ordinary function as a
// Dispatcher.
type DispatcherFunc func(ctx context.Context, req *api.Request, write pipeline.WriteFunc, stream pipeline.StreamFunc)

// Handle calls f(ctx, req, write, stream).
func (f DispatcherFunc) Handle(ctx context.Context, req *api.Request, write pipeline.WriteFunc, stream pipeline.StreamFunc) {
	f(ctx, req, write, stream)
}

var _ Dispatcher = (*pipeline.Pipeline)(nil)
