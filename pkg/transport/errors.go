package transport

import (
	"fmt"
	"html"
	"net/http"
)

// WriteHTMLError writes a minimal HTML error page for failures detected
// before a request reaches the pipeline, such as an oversized body.
func WriteHTMLError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<h3>%s</h3>", html.EscapeString(message))
}
