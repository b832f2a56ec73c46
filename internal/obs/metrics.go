package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready, 0 otherwise.",
	})
)

// Domain metrics. Incremented by the HTTP layer after the corresponding
// state transition succeeds (or, for rejections, is denied).
var (
	TapsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_taps_recorded_total",
			Help: "Authorized taps appended to the access event log.",
		},
		[]string{"direction"},
	)

	TapsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_taps_rejected_total",
			Help: "Taps rejected at authorization, by reason.",
		},
		[]string{"reason"},
	)

	TicketsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queue_tickets_issued_total",
		Help: "Queue tickets issued.",
	})

	TicketsCalled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queue_tickets_called_total",
		Help: "Queue tickets transitioned to serving.",
	})

	VisitorSessionsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visitor_sessions_closed_total",
		Help: "Visitor sessions completed by exit tap or expiry sweep.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
		TapsRecorded, TapsRejected, TicketsIssued, TicketsCalled, VisitorSessionsClosed,
	)
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight accounting.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric cardinality stays
// bounded: /v1/cards/<number> becomes /v1/cards/:number and so on.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	if len(parts) < 4 || parts[1] != "v1" {
		return path
	}

	switch parts[2] {
	case "cards":
		if len(parts) == 4 || (len(parts) == 5 && parts[4] == "status") {
			parts[3] = ":number"
		}
	case "visitors":
		if len(parts) == 4 && parts[3] != "sweep" {
			parts[3] = ":id"
		}
	case "queue":
		if len(parts) == 6 && parts[3] == "tickets" &&
			(parts[5] == "complete" || parts[5] == "cancel") {
			parts[4] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// statusWriter captures the response code written by the inner handler.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
