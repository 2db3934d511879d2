package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/config"
	"github.com/rhuss/kette/pkg/pipeline"
	"github.com/rhuss/kette/pkg/transport"
)

type result struct {
	resp   *api.HTTPResponse
	stream *api.StreamingResponse
}

func newTestPipeline(t *testing.T, modify func(*config.Config)) *pipeline.Pipeline {
	t.Helper()
	cfg := config.Defaults()
	if modify != nil {
		modify(&cfg)
	}
	a, err := newApp(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	p, err := a.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func do(p *pipeline.Pipeline, req *api.Request) result {
	var r result
	p.Handle(context.Background(), req,
		func(resp *api.HTTPResponse) error { r.resp = resp; return nil },
		func(_ context.Context, resp *api.StreamingResponse) error { r.stream = resp; return nil },
	)
	return r
}

func TestRoutes(t *testing.T) {
	p := newTestPipeline(t, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		status   int
		contains string
	}{
		{"index", "GET", "/", 200, "<h1>kette</h1>"},
		{"hello", "GET", "/hello/bob", 200, "hello, bob"},
		{"not found handler", "GET", "/nope", 404, "nothing at /nope"},
		{"bad tick count", "GET", "/ticks/0", 400, "count must be between"},
		{"missing item", "GET", "/items/42", 404, "nothing at /items/42"},
		{"whoami anonymous", "GET", "/whoami", 200, `"subject":"anonymous"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := do(p, api.NewRequest(tt.method, tt.path))
			if r.resp == nil {
				t.Fatalf("no buffered response (stream=%v)", r.stream != nil)
			}
			if r.resp.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d; body=%q", r.resp.StatusCode(), tt.status, r.resp.Body)
			}
			if !strings.Contains(string(r.resp.Body), tt.contains) {
				t.Errorf("body = %q, want it to contain %q", r.resp.Body, tt.contains)
			}
			if r.resp.Header.Get(transport.RequestIDHeader) == "" {
				t.Error("missing request ID header")
			}
		})
	}
}

func TestItemsLifecycle(t *testing.T) {
	p := newTestPipeline(t, nil)

	create := api.NewRequest("POST", "/items")
	create.Body = []byte(`{"name":"widget"}`)
	r := do(p, create)
	if r.resp == nil || r.resp.StatusCode() != http.StatusCreated {
		t.Fatalf("create: %+v", r.resp)
	}
	var created item
	if err := json.Unmarshal(r.resp.Body, &created); err != nil || created.ID != 1 || created.Name != "widget" {
		t.Fatalf("created = %+v, err=%v", created, err)
	}

	if r := do(p, api.NewRequest("GET", "/items")); !strings.Contains(string(r.resp.Body), "widget") {
		t.Errorf("list body = %q", r.resp.Body)
	}
	if r := do(p, api.NewRequest("GET", "/items/1")); r.resp.StatusCode() != http.StatusOK {
		t.Errorf("get status = %d", r.resp.StatusCode())
	}
	if r := do(p, api.NewRequest("DELETE", "/items/1")); r.resp.StatusCode() != http.StatusNoContent {
		t.Errorf("delete status = %d", r.resp.StatusCode())
	}
	if r := do(p, api.NewRequest("DELETE", "/items/1")); r.resp.StatusCode() != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", r.resp.StatusCode())
	}

	bad := api.NewRequest("POST", "/items")
	bad.Body = []byte(`{}`)
	if r := do(p, bad); r.resp.StatusCode() != http.StatusBadRequest {
		t.Errorf("bad create status = %d, want 400", r.resp.StatusCode())
	}
}

func TestTicksStream(t *testing.T) {
	p := newTestPipeline(t, nil)

	r := do(p, api.NewRequest("GET", "/ticks/3"))
	if r.stream == nil {
		t.Fatalf("expected streaming response, got %+v", r.resp)
	}

	var chunks []string
	err := r.stream.Produce(context.Background(), func(b []byte) error {
		chunks = append(chunks, string(b))
		return nil
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if strings.Join(chunks, "") != "tick 1\ntick 2\ntick 3\n" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Config) {
		c.Auth.Type = "apikey"
		c.Auth.APIKeys = []config.APIKeyConfig{{Key: "sk-demo", Subject: "alice", TenantID: "org-1", ServiceTier: "gold"}}
	})

	if r := do(p, api.NewRequest("GET", "/whoami")); r.resp.StatusCode() != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", r.resp.StatusCode())
	}

	req := api.NewRequest("GET", "/whoami")
	req.Header.Set("Authorization", "Bearer sk-demo")
	r := do(p, req)
	if r.resp.StatusCode() != http.StatusOK {
		t.Fatalf("with key: status = %d, body=%q", r.resp.StatusCode(), r.resp.Body)
	}
	var who map[string]any
	if err := json.Unmarshal(r.resp.Body, &who); err != nil {
		t.Fatal(err)
	}
	if who["subject"] != "alice" || who["tenant"] != "org-1" || who["tier"] != "gold" {
		t.Errorf("whoami = %v", who)
	}
}

func TestRateLimit(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Config) {
		c.Auth.RateLimit.DefaultRPM = 1
	})

	if r := do(p, api.NewRequest("GET", "/")); r.resp.StatusCode() != http.StatusOK {
		t.Fatalf("first request: status = %d", r.resp.StatusCode())
	}
	if r := do(p, api.NewRequest("GET", "/")); r.resp.StatusCode() != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", r.resp.StatusCode())
	}
}

func TestUnknownAuthType(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Type = "kerberos"
	if _, err := newApp(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("expected error for unknown auth type")
	}
}
