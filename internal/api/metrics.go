package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type serverMetrics struct {
	requests *prometheus.CounterVec   // method, route, status
	duration *prometheus.HistogramVec // method, route
	locks    *prometheus.CounterVec   // action, result
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminapi_http_requests_total",
				Help: "HTTP requests served by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adminapi_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		locks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminapi_edit_lock_total",
				Help: "Edit lock requests by action and result",
			},
			[]string{"action", "result"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.locks)
	return m
}

func (m *serverMetrics) lockResult(action, result string) {
	m.locks.WithLabelValues(action, result).Inc()
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r.URL.Path)
		s.metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.metrics.duration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
	})
}

// routeLabel collapses item ids so the route label stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	switch parts[0] {
	case "events", "vouchers":
	case "healthz", "metrics", "auth":
		return "/" + strings.Join(parts, "/")
	default:
		return "other"
	}
	if len(parts) >= 2 {
		switch parts[1] {
		case "stats", "issue", "validate":
			if len(parts) == 2 {
				return "/" + parts[0] + "/" + parts[1]
			}
		default:
			parts[1] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}
