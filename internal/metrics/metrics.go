package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Plans counts solve outcomes by status
	Plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plans_total", Help: "Plans produced by solve status."},
		[]string{"status"},
	)
	// SolveDuration tracks end-to-end solve times in milliseconds
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solve_duration_ms", Help: "Solve duration in ms.", Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}},
	)
	// SolveNodes tracks branch-and-bound nodes explored per solve
	SolveNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solve_nodes", Help: "Search nodes explored per solve.", Buckets: prometheus.ExponentialBuckets(16, 4, 10)},
	)
	// AcceptedRides tracks the number of rides accepted per plan
	AcceptedRides = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_accepted_rides", Help: "Accepted rides per plan.", Buckets: prometheus.LinearBuckets(0, 2, 12)},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Plans)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveNodes)
		Registry.MustRegister(AcceptedRides)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
