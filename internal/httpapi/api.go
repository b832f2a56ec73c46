// Package httpapi is the HTTP surface over the gate, registry, queue and
// visitor services. Handlers translate between JSON and the service
// interfaces; all domain rules live below this layer.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"campuspass.org/internal/access"
	"campuspass.org/internal/audit"
	"campuspass.org/internal/notify"
	"campuspass.org/internal/obs"
	"campuspass.org/internal/queue"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/stream"
	"campuspass.org/internal/visitor"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services bundles the domain services the API exposes.
type Services struct {
	Cards    registry.Service
	Gate     access.Service
	Queue    queue.Service
	Visitors visitor.Service
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	svc        Services

	stream     *stream.Stream
	dispatcher notify.Dispatcher
	now        func() time.Time

	rateBurst  int
	ratePerSec int
}

// Option configures API.
type Option func(*API)

// WithStream enables the SSE dashboard feed.
func WithStream(s *stream.Stream) Option {
	return func(a *API) { a.stream = s }
}

// WithDispatcher sets the notification sink for queue calls.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(a *API) { a.dispatcher = d }
}

// WithRateLimit overrides the per-IP token bucket parameters.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

// WithClock fixes the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

func New(rp ReadyProbe, version string, svc Services, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
		dispatcher: notify.Console{},
		now:        time.Now,
		rateBurst:  50,
		ratePerSec: 25,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/cards", a.handleCardsCollection)
	a.mux.HandleFunc("/v1/cards/", a.handleCardResource)

	a.mux.HandleFunc("/v1/taps", a.handleTaps)
	a.mux.HandleFunc("/v1/events", a.handleEvents)
	a.mux.HandleFunc("/v1/presence", a.handlePresence)
	a.mux.HandleFunc("/v1/presence/summary", a.handlePresenceSummary)

	a.mux.HandleFunc("/v1/visitors", a.handleVisitorsCollection)
	a.mux.HandleFunc("/v1/visitors/sweep", a.handleVisitorSweep)
	a.mux.HandleFunc("/v1/visitors/", a.handleVisitorResource)

	a.mux.HandleFunc("/v1/queue/tickets", a.handleTicketsCollection)
	a.mux.HandleFunc("/v1/queue/tickets/", a.handleTicketResource)
	a.mux.HandleFunc("/v1/queue/next", a.handleCallNext)
	a.mux.HandleFunc("/v1/queue/display", a.handleDisplay)

	a.mux.HandleFunc("/v1/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.withAuth(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "campuspass-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "campuspass-api",
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) publish(typ string, payload any) {
	if a.stream != nil {
		a.stream.Publish(typ, payload)
	}
}

func (a *API) notify(n notify.Notification) {
	if a.dispatcher != nil {
		a.dispatcher.Dispatch(n)
	}
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.LogEntry(map[string]any{
			"level": "error",
			"msg":   "audit log failed",
			"event": event,
			"error": err.Error(),
		})
	}
}
