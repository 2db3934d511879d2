package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/debug"
	"github.com/rhuss/kette/pkg/observability"
)

// panicError carries a recovered panic value. It never unwraps to the
// panic value, so a panicking StatusError is still an unexpected failure.
type panicError struct {
	value any
	err   error
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func (e *panicError) StackTrace() pkgerrors.StackTrace {
	if st, ok := e.err.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// captured converts a recovered value into an error with a stack trace
// taken inside the deferred call, so it includes the panicking frames.
func captured(r any) error {
	return &panicError{value: r, err: pkgerrors.New("panic")}
}

// recoverFrom renders a status-bearing exception raised by routing or a
// handler.
func (p *Pipeline) recoverFrom(ctx context.Context, req *api.Request, err error, status int) api.Response {
	observability.ExceptionsTotal.WithLabelValues(statusLabel(status)).Inc()

	handler, ok := p.exceptions[status]
	if !ok {
		debug.Log("pipeline", "no exception handler", "status", status, "path", req.Path)
		return api.HTML("<h3>"+html.EscapeString(err.Error())+"</h3>", status)
	}

	resp, herr := callException(ctx, handler, req, err)
	if herr == nil && api.IsEmpty(resp) {
		herr = fmt.Errorf("exception handler for status %d returned no response", status)
	}
	if herr != nil {
		p.failure(ctx, stageException, req, herr)
		return p.exceptionFailure(herr)
	}

	// Handlers may return shared values, so the override goes on a copy.
	switch r := resp.(type) {
	case *api.HTTPResponse:
		if r.StatusCode() == http.StatusOK {
			c := *r
			c.Status = status
			return &c
		}
	case *api.StreamingResponse:
		if r.StatusCode() == http.StatusOK {
			c := *r
			c.Status = status
			return &c
		}
	}
	return resp
}

// serverError synthesizes the 500 response for a failure in a pipeline
// phase.
func (p *Pipeline) serverError(title string, err error) *api.HTTPResponse {
	var b strings.Builder
	b.WriteString("<h3>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h3>\n<p>")
	b.WriteString(html.EscapeString(err.Error()))
	b.WriteString("</p>")
	if p.exposeTrace {
		b.WriteString("\n<pre>")
		b.WriteString(html.EscapeString(stackOf(err)))
		b.WriteString("</pre>")
	}
	return api.HTML(b.String(), http.StatusInternalServerError)
}

// exceptionFailure synthesizes the 500 response for a failing exception
// handler. The original status is discarded.
func (p *Pipeline) exceptionFailure(err error) *api.HTTPResponse {
	var b strings.Builder
	b.WriteString("<h1>")
	b.WriteString(html.EscapeString(err.Error()))
	b.WriteString("</h1>")
	if p.exposeTrace {
		b.WriteString("\n<pre>")
		b.WriteString(html.EscapeString(stackOf(err)))
		b.WriteString("</pre>")
	}
	return api.HTML(b.String(), http.StatusInternalServerError)
}

// stackOf formats the stack recorded on err, or the current stack when err
// carries none.
func stackOf(err error) string {
	var st stackTracer
	if !errors.As(err, &st) || st.StackTrace() == nil {
		st = pkgerrors.WithStack(err).(stackTracer)
	}
	return strings.TrimSpace(fmt.Sprintf("%+v", st.StackTrace()))
}

func callRequest(ctx context.Context, mw api.RequestMiddleware, req *api.Request) (resp api.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, captured(r)
		}
	}()
	return mw(ctx, req)
}

func callHandler(ctx context.Context, h api.Handler, req *api.Request, params api.Params) (resp api.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, captured(r)
		}
	}()
	if h == nil {
		return nil, errors.New("route has no handler")
	}
	return h(ctx, req, params)
}

func callException(ctx context.Context, h api.ExceptionHandler, req *api.Request, cause error) (resp api.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, captured(r)
		}
	}()
	return h(ctx, req, cause)
}

func callResponse(ctx context.Context, mw api.ResponseMiddleware, req *api.Request, current api.Response) (resp api.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, captured(r)
		}
	}()
	return mw(ctx, req, current)
}

func callDispatch(ctx context.Context, resp api.Response, write WriteFunc, stream StreamFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = captured(r)
		}
	}()
	switch r := resp.(type) {
	case *api.StreamingResponse:
		if stream == nil {
			return errors.New("no stream callback for streaming response")
		}
		return stream(ctx, r)
	case *api.HTTPResponse:
		if write == nil {
			return errors.New("no write callback for buffered response")
		}
		return write(r)
	}
	return fmt.Errorf("unsupported response type %T", resp)
}
