// Package pipeline runs a single request through the fixed phase sequence
// of a kette application: request middleware, routing and handler
// invocation, exception recovery, response middleware, and dispatch.
//
// The pipeline guarantees that exactly one of the write or stream callbacks
// is invoked per request and that Handle never panics. Failures in any
// phase are converted into responses; failures during dispatch are logged.
//
// Precedence between phases is intentionally asymmetric. A response from
// request middleware is dispatched as is and skips response middleware.
// A response from response middleware replaces the current response and
// stops the remaining response middleware. A failure inside response
// middleware overrides every earlier response, including a handled
// exception.
//
// A Pipeline is built once from a frozen Registry and a router.Resolver and
// is safe for concurrent use without locks.
package pipeline
