package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Response is either an *HTTPResponse or a *StreamingResponse. The set of
// variants is closed; other packages cannot add implementations.
type Response interface {
	StatusCode() int
	isResponse()
}

// HTTPResponse is a fully materialized response.
type HTTPResponse struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

// StatusCode returns the response status, defaulting to 200.
func (r *HTTPResponse) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

func (*HTTPResponse) isResponse() {}

// Producer lazily generates a streaming body. It calls send once per chunk
// and returns when the body is complete or send fails.
type Producer func(ctx context.Context, send func(chunk []byte) error) error

// StreamingResponse is a response whose body is produced incrementally.
type StreamingResponse struct {
	Status      int
	ContentType string
	Header      http.Header
	Producer    Producer
}

// StatusCode returns the response status, defaulting to 200.
func (r *StreamingResponse) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

func (*StreamingResponse) isResponse() {}

// Produce runs the producer. A nil producer yields an empty body.
func (r *StreamingResponse) Produce(ctx context.Context, send func(chunk []byte) error) error {
	if r.Producer == nil {
		return nil
	}
	return r.Producer(ctx, send)
}

// HTML creates a buffered response with a text/html body.
func HTML(body string, status int) *HTTPResponse {
	return &HTTPResponse{
		Status:      status,
		ContentType: "text/html; charset=utf-8",
		Header:      make(http.Header),
		Body:        []byte(body),
	}
}

// Text creates a buffered response with a text/plain body.
func Text(body string, status int) *HTTPResponse {
	return &HTTPResponse{
		Status:      status,
		ContentType: "text/plain; charset=utf-8",
		Header:      make(http.Header),
		Body:        []byte(body),
	}
}

// JSON creates a buffered response with v encoded as JSON.
func JSON(v any, status int) (*HTTPResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &HTTPResponse{
		Status:      status,
		ContentType: "application/json",
		Header:      make(http.Header),
		Body:        data,
	}, nil
}

// Stream creates a streaming response backed by producer.
func Stream(producer Producer, status int) *StreamingResponse {
	return &StreamingResponse{
		Status:      status,
		ContentType: "application/octet-stream",
		Header:      make(http.Header),
		Producer:    producer,
	}
}

// IsStreaming reports whether resp is the streaming variant.
func IsStreaming(resp Response) bool {
	_, ok := resp.(*StreamingResponse)
	return ok
}

// StatusOf returns the status resp will be sent with, or 0 when resp is
// empty.
func StatusOf(resp Response) int {
	if IsEmpty(resp) {
		return 0
	}
	return resp.StatusCode()
}

// IsEmpty reports whether resp is nil, including a typed nil pointer of
// either variant.
func IsEmpty(resp Response) bool {
	switch r := resp.(type) {
	case nil:
		return true
	case *HTTPResponse:
		return r == nil
	case *StreamingResponse:
		return r == nil
	}
	return false
}
