package util

import (
	"net/http"
	"strings"
	"time"

	"microblog/internal/metrics"
)

// WithMetrics records request counts and latency per method and route.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := metricsPath(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, http.StatusText(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// metricsPath collapses per-tweet paths so label cardinality stays bounded.
func metricsPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 3 && parts[0] == "tweets" {
		return "/tweets/{id}/" + parts[2]
	}
	if len(parts) >= 1 && parts[0] == "media" {
		return "/media/"
	}
	return path
}
