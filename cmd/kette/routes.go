package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/app"
	"github.com/rhuss/kette/pkg/auth"
	"github.com/rhuss/kette/pkg/config"
	"github.com/rhuss/kette/pkg/transport"
)

// newApp assembles the demo application.
func newApp(cfg *config.Config, logger *slog.Logger) (*app.App, error) {
	a := app.New("kette", app.WithLogger(logger), app.WithExposeTrace(cfg.Errors.ExposeTrace))

	authn, err := authMiddleware(cfg.Auth)
	if err != nil {
		return nil, err
	}
	logStart, logEnd := transport.AccessLog(logger)

	if err := a.Use(transport.Chain(transport.RequestID(), logStart, authn)); err != nil {
		return nil, err
	}
	for _, mw := range []api.ResponseMiddleware{transport.EchoRequestID(), logEnd} {
		if err := a.UseResponse(mw); err != nil {
			return nil, err
		}
	}

	if err := a.Get("/", index); err != nil {
		return nil, err
	}
	if err := a.Get("/hello/{name}", hello); err != nil {
		return nil, err
	}
	if err := a.Get("/whoami", whoami); err != nil {
		return nil, err
	}
	if err := a.Stream("/ticks/{count}", ticks, http.MethodGet); err != nil {
		return nil, err
	}

	items := app.NewBlueprint("items", "/items")
	store := newItemStore()
	items.AddView("/", &itemCollection{store: store})
	items.AddView("/{id}", &itemResource{store: store})
	if err := a.RegisterBlueprint(items); err != nil {
		return nil, err
	}

	if err := a.HandleStatus(http.StatusNotFound, notFound); err != nil {
		return nil, err
	}

	if err := a.Listener(app.AfterStart, func(ctx context.Context) error {
		logger.Info("routes ready", "count", len(a.Routes()))
		return nil
	}); err != nil {
		return nil, err
	}

	return a, nil
}

func index(_ context.Context, _ *api.Request, _ api.Params) (api.Response, error) {
	return api.HTML("<h1>kette</h1>", http.StatusOK), nil
}

func hello(_ context.Context, _ *api.Request, params api.Params) (api.Response, error) {
	return api.Text("hello, "+params.Get("name")+"\n", http.StatusOK), nil
}

func whoami(_ context.Context, req *api.Request, _ api.Params) (api.Response, error) {
	id := auth.IdentityFromRequest(req)
	if id == nil {
		return nil, api.Abort(http.StatusUnauthorized, "no identity")
	}
	return api.JSON(map[string]any{
		"subject":    id.Subject,
		"tier":       id.ServiceTier,
		"tenant":     id.TenantID(),
		"scopes":     id.Scopes,
		"request_id": transport.RequestIDFromRequest(req),
	}, http.StatusOK)
}

// ticks streams one line per 100ms, count lines in total.
func ticks(_ context.Context, _ *api.Request, params api.Params) (api.Response, error) {
	n, err := strconv.Atoi(params.Get("count"))
	if err != nil || n < 1 || n > 100 {
		return nil, api.Abort(http.StatusBadRequest, "count must be between 1 and 100")
	}
	resp := api.Stream(func(ctx context.Context, send func([]byte) error) error {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for i := 1; i <= n; i++ {
			if err := send([]byte(fmt.Sprintf("tick %d\n", i))); err != nil {
				return err
			}
			if i == n {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
		return nil
	}, http.StatusOK)
	resp.ContentType = "text/plain; charset=utf-8"
	return resp, nil
}

func notFound(_ context.Context, req *api.Request, _ error) (api.Response, error) {
	return api.HTML("<h3>nothing at "+html.EscapeString(req.Path)+"</h3>", http.StatusOK), nil
}

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type itemStore struct {
	mu    sync.Mutex
	next  int
	items map[int]item
}

func newItemStore() *itemStore {
	return &itemStore{next: 1, items: make(map[int]item)}
}

func (s *itemStore) list() []item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *itemStore) add(name string) item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := item{ID: s.next, Name: name}
	s.items[it.ID] = it
	s.next++
	return it
}

func (s *itemStore) get(id int) (item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

func (s *itemStore) remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

type itemCollection struct {
	store *itemStore
}

func (v *itemCollection) Get(_ context.Context, _ *api.Request, _ api.Params) (api.Response, error) {
	return api.JSON(v.store.list(), http.StatusOK)
}

func (v *itemCollection) Post(_ context.Context, req *api.Request, _ api.Params) (api.Response, error) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Body, &in); err != nil || in.Name == "" {
		return nil, api.Abort(http.StatusBadRequest, "expected {\"name\": ...}")
	}
	return api.JSON(v.store.add(in.Name), http.StatusCreated)
}

type itemResource struct {
	store *itemStore
}

func (v *itemResource) lookup(params api.Params) (int, error) {
	id, err := strconv.Atoi(params.Get("id"))
	if err != nil {
		return 0, api.NotFound("no such item")
	}
	return id, nil
}

func (v *itemResource) Get(_ context.Context, _ *api.Request, params api.Params) (api.Response, error) {
	id, err := v.lookup(params)
	if err != nil {
		return nil, err
	}
	it, ok := v.store.get(id)
	if !ok {
		return nil, api.NotFound("no such item")
	}
	return api.JSON(it, http.StatusOK)
}

func (v *itemResource) Delete(_ context.Context, _ *api.Request, params api.Params) (api.Response, error) {
	id, err := v.lookup(params)
	if err != nil {
		return nil, err
	}
	if !v.store.remove(id) {
		return nil, api.NotFound("no such item")
	}
	return &api.HTTPResponse{Status: http.StatusNoContent}, nil
}
