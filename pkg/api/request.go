package api

import (
	"net/http"
	"net/url"
)

// Params holds path parameters extracted by the route resolver.
type Params map[string]string

// Get returns the named parameter, or the empty string.
func (p Params) Get(name string) string {
	if p == nil {
		return ""
	}
	return p[name]
}

// Request is the parsed request flowing through the pipeline. The pipeline
// never replaces it; middleware may attach annotations with Set.
//
// A Request belongs to a single pipeline invocation and is not safe for
// concurrent use.
type Request struct {
	Method     string
	Path       string
	URL        *url.URL
	Header     http.Header
	Body       []byte
	RemoteAddr string

	annotations map[string]any
}

// NewRequest builds a Request for the given method and target. The target
// may carry a query string.
func NewRequest(method, target string) *Request {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: target}
	}
	return &Request{
		Method: method,
		Path:   u.Path,
		URL:    u,
		Header: make(http.Header),
	}
}

// Query returns the parsed query string.
func (r *Request) Query() url.Values {
	if r.URL == nil {
		return url.Values{}
	}
	return r.URL.Query()
}

// Set attaches an annotation to the request.
func (r *Request) Set(key string, value any) {
	if r.annotations == nil {
		r.annotations = make(map[string]any)
	}
	r.annotations[key] = value
}

// Value returns an annotation previously attached with Set.
func (r *Request) Value(key string) (any, bool) {
	v, ok := r.annotations[key]
	return v, ok
}

// String returns the annotation for key if it is a string.
func (r *Request) String(key string) string {
	v, _ := r.annotations[key].(string)
	return v
}
