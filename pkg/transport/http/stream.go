package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
	"github.com/rhuss/kette/pkg/transport"
)

// writerState tracks the state of a streamWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // Headers sent, chunks flowing
	writerCompleted                    // Producer returned
)

// streamWriter delivers a StreamingResponse as chunked output, flushing
// after every chunk.
type streamWriter struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	inflight *transport.InFlightRegistry
	logger   *slog.Logger

	mu    sync.Mutex
	state writerState
}

func newStreamWriter(w http.ResponseWriter, inflight *transport.InFlightRegistry, logger *slog.Logger) *streamWriter {
	return &streamWriter{
		w:        w,
		rc:       http.NewResponseController(w),
		inflight: inflight,
		logger:   logger,
	}
}

// stream returns the stream callback for req. The producer runs with a
// cancellable context registered in the in-flight registry under a
// server-generated stream ID, so shutdown can stop it. Request IDs come
// from clients and are not unique, so they are only logged.
func (s *streamWriter) stream(req *api.Request) func(context.Context, *api.StreamingResponse) error {
	return func(ctx context.Context, resp *api.StreamingResponse) error {
		id := "stream_" + uuid.NewString()
		requestID := transport.RequestIDFromRequest(req)
		if requestID == "" {
			requestID = transport.RequestIDFromContext(ctx)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		s.inflight.Register(id, cancel)
		defer s.inflight.Remove(id)

		if err := s.start(resp); err != nil {
			return err
		}
		debug.Log("streaming", "stream started", "id", id, "request_id", requestID, "status", resp.StatusCode())

		err := resp.Produce(ctx, s.send)

		s.mu.Lock()
		s.state = writerCompleted
		s.mu.Unlock()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Info("stream cancelled", slog.String("id", id), slog.String("request_id", requestID))
				return nil
			}
			return fmt.Errorf("stream producer: %w", err)
		}
		return nil
	}
}

// start writes the status line and headers and flushes them so clients
// see the response before the first chunk.
func (s *streamWriter) start(resp *api.StreamingResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != writerIdle {
		return errors.New("cannot start stream: writer already used")
	}

	h := s.w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if resp.ContentType != "" {
		h.Set("Content-Type", resp.ContentType)
	}
	h.Set("Cache-Control", "no-cache")
	h.Del("Content-Length")
	s.w.WriteHeader(resp.StatusCode())
	s.state = writerStreaming

	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// send writes one chunk and flushes it.
func (s *streamWriter) send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != writerStreaming {
		return errors.New("cannot write chunk: stream is not active")
	}
	if len(chunk) == 0 {
		return nil
	}
	if _, err := s.w.Write(chunk); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}
