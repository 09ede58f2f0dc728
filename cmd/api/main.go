package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riderev/internal/api"
	"riderev/internal/metrics"
)

func main() {
	srv, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Ride request catalog
	mux.HandleFunc("/v1/requests", srv.RequestsHandler)
	mux.HandleFunc("/v1/requests/generate", srv.GenerateRequestsHandler)

	// Planning
	mux.HandleFunc("/v1/plan", srv.PlanHandler)
	mux.HandleFunc("/v1/plans", srv.PlansIndexHandler)
	mux.HandleFunc("/v1/plans/", srv.PlanByIDHandler) // includes /itinerary, /model.lp, /events/stream

	// Zone map
	mux.HandleFunc("/v1/zones", srv.ZonesHandler)

	// Plan event WebSocket
	mux.HandleFunc("/v1/ws", srv.PlanWSHandler)

	// Health
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)

	// Admin
	mux.HandleFunc("/v1/admin/solver/runs", srv.SolverRunsHandler)
	mux.HandleFunc("/v1/debug", srv.DebugJSON)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := srv.Cfg.Addr
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(srv.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}
