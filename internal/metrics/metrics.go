// Package metrics exposes Prometheus metrics for the file viewer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileviewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileviewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Event stream
	sseSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fileviewer_sse_subscribers",
			Help: "Number of registered event stream subscribers",
		},
	)

	sseBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileviewer_sse_broadcasts_total",
			Help: "Change events broadcast, by event type",
		},
		[]string{"event_type"},
	)

	sseDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileviewer_sse_dropped_subscribers_total",
			Help: "Subscribers removed because their queue was full",
		},
	)

	// Watchers
	watchersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fileviewer_watchers_active",
			Help: "Number of running project watchers",
		},
	)

	watcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileviewer_watcher_events_total",
			Help: "File change events observed, by event type",
		},
		[]string{"event_type"},
	)

	// Scanning and parsing
	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileviewer_scan_duration_seconds",
			Help:    "Directory scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	parsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileviewer_parses_total",
			Help: "File previews built, by format and outcome",
		},
		[]string{"format", "result"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetSSESubscribers sets the number of registered subscribers.
func SetSSESubscribers(n int) {
	sseSubscribers.Set(float64(n))
}

// RecordBroadcast records one broadcast of a change event.
func RecordBroadcast(eventType string) {
	sseBroadcastsTotal.WithLabelValues(eventType).Inc()
}

// RecordDroppedSubscribers adds n dropped subscribers.
func RecordDroppedSubscribers(n int) {
	if n > 0 {
		sseDroppedTotal.Add(float64(n))
	}
}

// SetWatchersActive sets the number of running watchers.
func SetWatchersActive(n int) {
	watchersActive.Set(float64(n))
}

// RecordWatcherEvent records a change event reported by a watcher.
func RecordWatcherEvent(eventType string) {
	watcherEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordScan records how long a listing took. mode is "list" or "recursive".
func RecordScan(mode string, duration time.Duration) {
	scanDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordParse records a file preview.
func RecordParse(format string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	parsesTotal.WithLabelValues(format, result).Inc()
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request counts and latency, labelled by the chi route
// pattern so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
