// Package transport holds the pieces shared by kette's transports: the
// Dispatcher contract a transport drives, built-in request and response
// middleware, and bookkeeping for in-flight streaming responses.
//
// # Middleware
//
// RequestID assigns an X-Request-ID to every request, reusing an incoming
// header when present. AccessLog emits one structured log record per
// request via log/slog. Both are plain pipeline middleware and are
// registered like any user middleware:
//
//	reqLog, respLog := transport.AccessLog(logger)
//	_ = a.Use(transport.RequestID())
//	_ = a.Use(reqLog)
//	_ = a.UseResponse(respLog)
//
// Decorating response middleware mutates the current response in place and
// returns nil, since returning a response stops the remaining response
// middleware.
//
// Panic recovery is not a middleware here; the pipeline recovers every
// phase itself.
package transport
