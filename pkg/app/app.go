package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
	"github.com/rhuss/kette/pkg/pipeline"
	"github.com/rhuss/kette/pkg/router"
)

var (
	// ErrFrozen is returned by registration calls made after Build.
	ErrFrozen = errors.New("app: application is built, registration is closed")

	// ErrDuplicateBlueprint is returned when a blueprint name is already registered.
	ErrDuplicateBlueprint = errors.New("app: blueprint name already registered")

	// ErrUnknownPhase is returned for an unrecognized middleware phase.
	ErrUnknownPhase = pipeline.ErrUnknownPhase
)

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger passed to the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithExposeTrace controls whether synthesized 500 bodies include a stack
// trace.
func WithExposeTrace(expose bool) Option {
	return func(a *App) {
		a.exposeTrace = expose
	}
}

// WithPipelineOptions appends raw pipeline options applied at Build.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(a *App) {
		a.pipelineOpts = append(a.pipelineOpts, opts...)
	}
}

// App is the application builder.
type App struct {
	mu sync.Mutex

	name        string
	router      *router.Router
	registry    *pipeline.Registry
	hooks       map[Event][]Hook
	blueprints  map[string]*Blueprint
	bpOrder     []string
	logger      *slog.Logger
	exposeTrace bool

	pipelineOpts []pipeline.Option
	built        *pipeline.Pipeline
}

// New creates an empty application.
func New(name string, opts ...Option) *App {
	a := &App{
		name:        name,
		router:      router.New(),
		registry:    pipeline.NewRegistry(),
		hooks:       make(map[Event][]Hook),
		blueprints:  make(map[string]*Blueprint),
		logger:      slog.Default(),
		exposeTrace: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the application name.
func (a *App) Name() string { return a.name }

// Route binds handler to url for the given methods (GET when none given).
func (a *App) Route(url string, handler api.Handler, methods ...string) error {
	return a.addRoute(router.Route{Pattern: url, Handler: handler, Methods: methods})
}

// Stream binds a handler that produces streaming responses.
func (a *App) Stream(url string, handler api.Handler, methods ...string) error {
	return a.addRoute(router.Route{Pattern: url, Handler: handler, Methods: methods, Stream: true})
}

// Get binds handler to GET url.
func (a *App) Get(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodGet)
}

// Post binds handler to POST url.
func (a *App) Post(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodPost)
}

// Put binds handler to PUT url.
func (a *App) Put(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodPut)
}

// Patch binds handler to PATCH url.
func (a *App) Patch(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodPatch)
}

// Delete binds handler to DELETE url.
func (a *App) Delete(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodDelete)
}

// Head binds handler to HEAD url.
func (a *App) Head(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodHead)
}

// Options binds handler to OPTIONS url.
func (a *App) Options(url string, handler api.Handler) error {
	return a.Route(url, handler, http.MethodOptions)
}

func (a *App) addRoute(route router.Route) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.built != nil {
		return ErrFrozen
	}
	return a.router.Add(route)
}

// Use registers request middleware.
func (a *App) Use(mw api.RequestMiddleware) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.registry.Use(mw)
}

// UseResponse registers response middleware.
func (a *App) UseResponse(mw api.ResponseMiddleware) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.registry.UseResponse(mw)
}

// Middleware registers mw under phase. An empty phase means
// pipeline.PhaseRequest.
func (a *App) Middleware(phase pipeline.Phase, mw any) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.registry.Register(phase, mw)
}

// Exception binds handler to the status code carried by err.
func (a *App) Exception(err api.StatusError, handler api.ExceptionHandler) error {
	if err == nil {
		return errors.New("app: nil exception")
	}
	return a.HandleStatus(err.StatusCode(), handler)
}

// HandleStatus binds handler to a status code. The last registration for
// a status wins.
func (a *App) HandleStatus(status int, handler api.ExceptionHandler) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.registry.HandleStatus(status, handler)
}

// RegisterBlueprint adds the blueprint's routes under its prefix and its
// middleware and exception handlers to the application. Blueprint names
// are unique. An invalid blueprint is rejected as a whole, leaving the
// application and the name untouched.
func (a *App) RegisterBlueprint(bp *Blueprint) error {
	if bp == nil {
		return errors.New("app: nil blueprint")
	}
	if err := a.claimBlueprint(bp, false); err != nil {
		return err
	}
	if err := bp.validate(); err != nil {
		return err
	}
	if err := a.claimBlueprint(bp, true); err != nil {
		return err
	}

	debug.Log("app", "registering blueprint", "name", bp.name, "prefix", bp.prefix, "routes", len(bp.routes))
	return bp.register(a)
}

// claimBlueprint checks that bp can still be registered and, when record
// is set, reserves its name.
func (a *App) claimBlueprint(bp *Blueprint, record bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.built != nil {
		return ErrFrozen
	}
	if _, ok := a.blueprints[bp.name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateBlueprint, bp.name)
	}
	if record {
		a.blueprints[bp.name] = bp
		a.bpOrder = append(a.bpOrder, bp.name)
	}
	return nil
}

// Blueprints returns registered blueprint names in registration order.
func (a *App) Blueprints() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.bpOrder...)
}

// Routes returns the registered routes in registration order.
func (a *App) Routes() []router.Route {
	return a.router.Routes()
}

// HasStream reports whether any streaming route is registered.
func (a *App) HasStream() bool {
	return a.router.HasStream()
}

// Build freezes the application and returns its pipeline. Calling Build
// again returns the same pipeline.
func (a *App) Build() (*pipeline.Pipeline, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.built != nil {
		return a.built, nil
	}

	a.router.Freeze()
	opts := append([]pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithExposeTrace(a.exposeTrace),
	}, a.pipelineOpts...)

	p, err := pipeline.New(a.router, a.registry, opts...)
	if err != nil {
		return nil, err
	}
	a.built = p

	req, res := a.registry.Len()
	a.logger.Info("application built",
		"name", a.name,
		"routes", len(a.router.Routes()),
		"request_middleware", req,
		"response_middleware", res,
		"stream", a.router.HasStream(),
	)
	return p, nil
}

// Handle runs a request through the built pipeline. It builds the
// application on first use.
func (a *App) Handle(ctx context.Context, req *api.Request, write pipeline.WriteFunc, stream pipeline.StreamFunc) error {
	p, err := a.Build()
	if err != nil {
		return err
	}
	p.Handle(ctx, req, write, stream)
	return nil
}

func (a *App) checkOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.built != nil {
		return ErrFrozen
	}
	return nil
}
