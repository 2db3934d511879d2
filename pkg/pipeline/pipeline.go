package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
	"github.com/rhuss/kette/pkg/observability"
	"github.com/rhuss/kette/pkg/router"
)

const tracerName = "github.com/rhuss/kette/pkg/pipeline"

// Stage names used in logs, metrics, and span events.
const (
	stageRequest   = "request_middleware"
	stageHandler   = "handler"
	stageException = "exception_handler"
	stageResponse  = "response_middleware"
	stageDispatch  = "dispatch"
)

// WriteFunc delivers a buffered response to the client.
type WriteFunc func(resp *api.HTTPResponse) error

// StreamFunc delivers a streaming response to the client.
type StreamFunc func(ctx context.Context, resp *api.StreamingResponse) error

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for captured failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithExposeTrace controls whether synthesized 500 bodies include a stack
// trace. Traces are included by default.
func WithExposeTrace(expose bool) Option {
	return func(p *Pipeline) {
		p.exposeTrace = expose
	}
}

// WithTracer overrides the OpenTelemetry tracer. By default the global
// tracer provider is used.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// Pipeline is the immutable per-application request processor.
type Pipeline struct {
	resolver    router.Resolver
	request     []api.RequestMiddleware
	response    []api.ResponseMiddleware
	exceptions  map[int]api.ExceptionHandler
	logger      *slog.Logger
	exposeTrace bool
	tracer      trace.Tracer
}

// New freezes registry and builds a Pipeline from its contents. Later
// changes to the registry are rejected, so the Pipeline never observes
// them.
func New(resolver router.Resolver, registry *Registry, opts ...Option) (*Pipeline, error) {
	if resolver == nil {
		return nil, errors.New("pipeline: resolver is required")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	registry.Freeze()
	request, response, exceptions := registry.snapshot()

	p := &Pipeline{
		resolver:    resolver,
		request:     request,
		response:    response,
		exceptions:  exceptions,
		logger:      slog.Default(),
		exposeTrace: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p, nil
}

// Handle runs req through every phase and delivers the final response via
// exactly one of write or stream. It never panics.
func (p *Pipeline) Handle(ctx context.Context, req *api.Request, write WriteFunc, stream StreamFunc) {
	if req == nil {
		p.logger.Error("pipeline called without a request")
		_ = callDispatch(ctx, p.serverError("unable to complete the request", errors.New("nil request")), write, stream)
		return
	}

	dispatched := false
	defer func() {
		// Every phase captures its own panics; this only guards the
		// pipeline's own bookkeeping.
		r := recover()
		if r == nil {
			return
		}
		p.logger.Error("pipeline panic", "panic", r, "path", req.Path)
		if !dispatched {
			_ = callDispatch(ctx, p.serverError("unable to complete the request", captured(r)), write, stream)
		}
	}()

	ctx, span := p.tracer.Start(ctx, "kette.pipeline",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		))
	defer span.End()

	resp, shortCircuit := p.runRequestMiddleware(ctx, req)
	if shortCircuit {
		observability.ShortCircuitsTotal.Inc()
		span.AddEvent("short_circuit")
		dispatched = true
		p.dispatch(ctx, req, resp, write, stream)
		return
	}

	// resp is only set here when request middleware failed; routing is
	// skipped in that case.
	if resp == nil {
		resp = p.runHandler(ctx, req)
	}

	resp = p.runResponseMiddleware(ctx, req, resp)
	dispatched = true
	p.dispatch(ctx, req, resp, write, stream)
}

// runRequestMiddleware returns (resp, true) for a short circuit and
// (resp, false) with a synthesized error response on failure.
func (p *Pipeline) runRequestMiddleware(ctx context.Context, req *api.Request) (api.Response, bool) {
	for i, mw := range p.request {
		resp, err := callRequest(ctx, mw, req)
		if err != nil {
			p.failure(ctx, stageRequest, req, err)
			return p.serverError("unable to perform the request middleware and router function", err), false
		}
		if !api.IsEmpty(resp) {
			debug.Log("pipeline", "request middleware short-circuited", "index", i, "path", req.Path)
			return resp, true
		}
	}
	trace.SpanFromContext(ctx).AddEvent(stageRequest)
	return nil, false
}

func (p *Pipeline) runHandler(ctx context.Context, req *api.Request) api.Response {
	resp, err := p.invoke(ctx, req)
	trace.SpanFromContext(ctx).AddEvent(stageHandler)
	if err == nil {
		return resp
	}

	if status, ok := api.StatusFromError(err); ok {
		return p.recoverFrom(ctx, req, err, status)
	}

	p.failure(ctx, stageHandler, req, err)
	return p.serverError("unable to perform the request middleware and router function", err)
}

// invoke resolves the route and calls its handler. A handler returning
// neither a response nor an error is reported as a server error exception.
func (p *Pipeline) invoke(ctx context.Context, req *api.Request) (api.Response, error) {
	route, params, err := p.resolver.Resolve(req)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, api.NotFound(fmt.Sprintf("%s %s not found", req.Method, req.Path))
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.route", route.Pattern))

	resp, err := callHandler(ctx, route.Handler, req, params)
	if err != nil {
		return nil, err
	}
	if api.IsEmpty(resp) {
		return nil, api.ServerError("Internal Server Error.")
	}
	return resp, nil
}

func (p *Pipeline) runResponseMiddleware(ctx context.Context, req *api.Request, current api.Response) api.Response {
	for i, mw := range p.response {
		resp, err := callResponse(ctx, mw, req, current)
		if err != nil {
			p.failure(ctx, stageResponse, req, err)
			return p.serverError("unable to perform the response middleware", err)
		}
		// Only buffered results replace the current response.
		if buffered, ok := resp.(*api.HTTPResponse); ok && buffered != nil {
			debug.Log("pipeline", "response middleware replaced response", "index", i, "status", buffered.StatusCode())
			return buffered
		}
	}
	trace.SpanFromContext(ctx).AddEvent(stageResponse)
	return current
}

func (p *Pipeline) dispatch(ctx context.Context, req *api.Request, resp api.Response, write WriteFunc, stream StreamFunc) {
	span := trace.SpanFromContext(ctx)
	if api.IsEmpty(resp) {
		resp = p.serverError("no response produced", errors.New("pipeline produced no response"))
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))

	kind := "buffered"
	if api.IsStreaming(resp) {
		kind = "streaming"
		observability.StreamingConnections.Inc()
		defer observability.StreamingConnections.Dec()
	}

	if err := callDispatch(ctx, resp, write, stream); err != nil {
		observability.DispatchTotal.WithLabelValues(kind, "error").Inc()
		p.failure(ctx, stageDispatch, req, err)
		return
	}
	observability.DispatchTotal.WithLabelValues(kind, "ok").Inc()
	debug.Log("pipeline", "response dispatched", "kind", kind, "status", resp.StatusCode(), "path", req.Path)
}

// failure records a captured failure in logs, metrics, and the active span.
func (p *Pipeline) failure(ctx context.Context, stage string, req *api.Request, err error) {
	observability.PipelineFailuresTotal.WithLabelValues(stage).Inc()

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")

	p.logger.LogAttrs(ctx, slog.LevelError, "pipeline failure",
		slog.String("phase", stage),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("error", err.Error()),
	)
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline(request=%d, response=%d, exceptions=%d)",
		len(p.request), len(p.response), len(p.exceptions))
}
