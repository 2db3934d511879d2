package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/kette/pkg/api"
)

const startKey = "transport.start"

// AccessLog returns a request and response middleware pair that emits one
// structured log entry per request. The entry includes method, path,
// status, duration, and request ID (when RequestID runs first).
//
// Requests answered by request middleware skip response middleware, so
// they are not logged here.
func AccessLog(logger *slog.Logger) (api.RequestMiddleware, api.ResponseMiddleware) {
	if logger == nil {
		logger = slog.Default()
	}

	before := func(ctx context.Context, req *api.Request) (api.Response, error) {
		req.Set(startKey, time.Now())
		return nil, nil
	}

	after := func(ctx context.Context, req *api.Request, resp api.Response) (api.Response, error) {
		status := api.StatusOf(resp)
		attrs := []slog.Attr{
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", status),
			slog.Bool("stream", api.IsStreaming(resp)),
		}
		if id := RequestIDFromRequest(req); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if v, ok := req.Value(startKey); ok {
			if start, ok := v.(time.Time); ok {
				attrs = append(attrs, slog.Duration("duration", time.Since(start)))
			}
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, "request completed", attrs...)
		return nil, nil
	}

	return before, after
}
