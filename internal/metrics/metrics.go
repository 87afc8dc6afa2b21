// Package metrics exposes prometheus instrumentation for the monitoring
// engine and its HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"repost_monitor/internal/domain"
)

const namespace = "repost_monitor"

// Collector aggregates run, pass and HTTP metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	passesTotal     prometheus.Counter
	repostsTotal    prometheus.Counter
	failuresTotal   *prometheus.CounterVec
	activeRuns      prometheus.Gauge
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		passesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Completed sweeps over the monitored account set.",
		}),
		repostsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reposts_total",
			Help:      "Items successfully reposted.",
		}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_failures_total",
			Help:      "Accounts that finished a pass unsuccessfully, by kind.",
		}, []string{"kind"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Monitoring runs currently registered.",
		}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, path and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	c.registry.MustRegister(
		c.passesTotal,
		c.repostsTotal,
		c.failuresTotal,
		c.activeRuns,
		c.requestTotal,
		c.requestDuration,
	)
	return c
}

// Handler serves the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordPass counts one completed sweep.
func (c *Collector) RecordPass(stats domain.PassStats) {
	c.passesTotal.Inc()
	c.repostsTotal.Add(float64(stats.Reposted))
}

// RecordResult counts one account outcome.
func (c *Collector) RecordResult(result domain.ProcessingResult) {
	switch result.Status {
	case domain.StatusFailed:
		c.failuresTotal.WithLabelValues("failed").Inc()
	case domain.StatusAccountMissing:
		c.failuresTotal.WithLabelValues("account_missing").Inc()
	}
}

// SetActiveRuns tracks how many runs the registry currently holds.
func (c *Collector) SetActiveRuns(n int) {
	c.activeRuns.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request count and latency
// metrics. The path label is the route pattern, never the raw URL, to keep
// cardinality bounded.
func (c *Collector) InstrumentHandler(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		c.requestTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
