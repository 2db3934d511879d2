package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsMiddleware wraps an HTTP handler to record:
//   - kette_requests_total (counter) by status code and method
//   - kette_request_duration_seconds (histogram) by method
//   - kette_requests_in_flight (gauge)
//
// The promhttp delegators keep http.Flusher available, so streaming
// responses served through the wrapped handler still flush per chunk.
func MetricsMiddleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(RequestsInFlight,
		promhttp.InstrumentHandlerDuration(RequestDuration,
			promhttp.InstrumentHandlerCounter(RequestsTotal, next),
		),
	)
}
