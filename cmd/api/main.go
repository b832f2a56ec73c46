package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuspass.org/internal/access"
	"campuspass.org/internal/config"
	"campuspass.org/internal/httpapi"
	"campuspass.org/internal/notify"
	"campuspass.org/internal/obs"
	"campuspass.org/internal/queue"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/store/pg"
	"campuspass.org/internal/stream"
	"campuspass.org/internal/visitor"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		svc   httpapi.Services
		store *pg.Store
	)
	if cfg.PGDSN != "" {
		store, err = pg.Open(cfg.PGDSN, pg.WithLocation(loc))
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		svc = httpapi.Services{
			Cards:    store,
			Gate:     store,
			Queue:    store,
			Visitors: store,
		}
	} else {
		// No DSN: run everything in process. State is lost on restart;
		// fine for development, not for a real gate.
		cards := registry.NewInMemory()
		visitors := visitor.NewInMemory(cards)
		svc = httpapi.Services{
			Cards: cards,
			Gate: access.NewInMemory(cards,
				access.WithLocation(loc),
				access.WithExitObserver(visitors),
			),
			Queue:    queue.NewInMemory(loc),
			Visitors: visitors,
		}
	}

	var dispatcher notify.Dispatcher = notify.Console{}
	if cfg.SendGridKey != "" {
		dispatcher = notify.NewSendGrid(cfg.SendGridKey, cfg.AppName, cfg.NotifyFrom)
	}

	events := stream.New()

	var probe httpapi.ReadyProbe
	if store != nil {
		probe.DB = store.DB()
	}
	api := httpapi.New(probe, version, svc,
		httpapi.WithStream(events),
		httpapi.WithDispatcher(dispatcher),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Sessions whose badge expired without an exit tap are closed in the
	// background so the visitor log converges on its own.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runSweep(sweepCtx, svc.Visitors, cfg.SweepInterval)

	log.Printf("Starting campuspass-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

func runSweep(ctx context.Context, visitors visitor.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := visitors.Sweep(ctx, time.Now())
			if err != nil {
				obs.LogEntry(map[string]any{
					"level": "error",
					"msg":   "visitor sweep failed",
					"error": err.Error(),
				})
				continue
			}
			if closed > 0 {
				obs.VisitorSessionsClosed.Add(float64(closed))
				obs.LogEntry(map[string]any{
					"msg":    "visitor sweep",
					"closed": closed,
				})
			}
		}
	}
}
