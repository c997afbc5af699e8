// Package metrics exposes Prometheus counters for the portal and its upstream calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all portal metrics on a private prometheus registry.
// All methods are safe to call on a nil *Registry.
type Registry struct {
	reg *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	StaleReports     prometheus.Counter
	ReportCacheHits  prometheus.Counter
	LoginAttempts    *prometheus.CounterVec
}

// New creates a registry with all metrics registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpha_matrix_upstream_requests_total",
				Help: "Upstream API calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alpha_matrix_upstream_duration_seconds",
				Help:    "Upstream API call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpha_matrix_http_requests_total",
				Help: "Inbound HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),

		StaleReports: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alpha_matrix_stale_reports_total",
				Help: "Strategy reports discarded because a newer selection replaced them",
			},
		),

		ReportCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alpha_matrix_report_cache_hits_total",
				Help: "Strategy reports served from the in-memory cache",
			},
		),

		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpha_matrix_login_attempts_total",
				Help: "Access gate submissions by result",
			},
			[]string{"result"},
		),
	}

	r.reg.MustRegister(
		r.UpstreamRequests,
		r.UpstreamDuration,
		r.HTTPRequests,
		r.StaleReports,
		r.ReportCacheHits,
		r.LoginAttempts,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveUpstream records one upstream call.
func (r *Registry) ObserveUpstream(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	r.UpstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveHTTP records one inbound request.
func (r *Registry) ObserveHTTP(method string, status int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// IncStaleReport counts a report result that lost the race to a newer selection.
func (r *Registry) IncStaleReport() {
	if r == nil {
		return
	}
	r.StaleReports.Inc()
}

// IncReportCacheHit counts a report served from cache.
func (r *Registry) IncReportCacheHit() {
	if r == nil {
		return
	}
	r.ReportCacheHits.Inc()
}

// ObserveLogin counts an access gate submission ("ok" or "rejected").
func (r *Registry) ObserveLogin(result string) {
	if r == nil {
		return
	}
	r.LoginAttempts.WithLabelValues(result).Inc()
}
