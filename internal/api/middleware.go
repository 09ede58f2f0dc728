package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"riderev/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware applies rate limiting and request metrics. Streaming and
// probe endpoints bypass the limiter so dashboards and SSE clients are
// never shed.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !exemptFromRateLimit(r.URL.Path) && !s.limiter.Allow() {
			writeProblem(w, http.StatusTooManyRequests, titleRateLimited, "", r.URL.Path)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		route := metricsRoute(r.URL.Path)
		code := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
	})
}

func exemptFromRateLimit(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics" ||
		path == "/v1/ws" || strings.HasSuffix(path, "/events/stream")
}

// metricsRoute collapses plan ids so the path label stays low-cardinality.
func metricsRoute(path string) string {
	if strings.HasPrefix(path, "/v1/plans/") {
		rest := strings.TrimPrefix(path, "/v1/plans/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/v1/plans/{id}/" + rest[i+1:]
		}
		return "/v1/plans/{id}"
	}
	return path
}
