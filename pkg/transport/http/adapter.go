// Package http serves a kette application over net/http.
package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
	"github.com/rhuss/kette/pkg/transport"
)

// Adapter converts net/http requests into api.Requests, runs them through
// a Dispatcher, and writes the result back to the client.
type Adapter struct {
	dispatcher transport.Dispatcher
	inflight   *transport.InFlightRegistry
	config     Config
	logger     *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter serving d.
func NewAdapter(d transport.Dispatcher, cfg Config) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		dispatcher: d,
		inflight:   transport.NewInFlightRegistry(),
		config:     cfg,
		logger:     logger,
	}
}

// InFlight returns the registry of active streaming responses.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a)
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := a.convert(w, r)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteHTMLError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
			return
		}
		transport.WriteHTMLError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	debug.Log("transport", "dispatching request", "method", req.Method, "path", req.Path)
	sw := newStreamWriter(w, a.inflight, a.logger)
	a.dispatcher.Handle(r.Context(), req, writeBuffered(w, r), sw.stream(req))
}

// convert reads the body (bounded by MaxBodySize) and builds the
// pipeline request.
func (a *Adapter) convert(w http.ResponseWriter, r *http.Request) (*api.Request, error) {
	var body []byte
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body = data
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	return &api.Request{
		Method:     r.Method,
		Path:       path,
		URL:        r.URL,
		Header:     r.Header.Clone(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	}, nil
}

// writeBuffered returns the write callback for a single response.
func writeBuffered(w http.ResponseWriter, r *http.Request) func(*api.HTTPResponse) error {
	return func(resp *api.HTTPResponse) error {
		h := w.Header()
		for k, vs := range resp.Header {
			for _, v := range vs {
				h.Add(k, v)
			}
		}
		if resp.ContentType != "" {
			h.Set("Content-Type", resp.ContentType)
		}
		h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
		w.WriteHeader(resp.StatusCode())

		if r.Method == http.MethodHead {
			return nil
		}
		if _, err := w.Write(resp.Body); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		return nil
	}
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is carried into the
// context, and it is added to the response headers before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(transport.RequestIDHeader); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if w.ResponseWriter.Header().Get(transport.RequestIDHeader) != "" {
		return
	}
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set(transport.RequestIDHeader, id)
	}
}
