package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// agent's action pipeline.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
	quotaRejections *prometheus.CounterVec
	triggerRuns     *prometheus.CounterVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "socialagent",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialagent",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	actionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialagent",
		Subsystem: "agent",
		Name:      "actions_total",
		Help:      "Executed actions by type and terminal status.",
	}, []string{"type", "status"})

	quotaRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialagent",
		Subsystem: "agent",
		Name:      "quota_rejections_total",
		Help:      "Calls blocked or rejected by platform rate limits.",
	}, []string{"endpoint"})

	triggerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialagent",
		Subsystem: "agent",
		Name:      "trigger_runs_total",
		Help:      "Periodic trigger executions by trigger name and outcome.",
	}, []string{"trigger", "outcome"})

	for _, c := range []prometheus.Collector{
		requestDuration, requestTotal, actionsTotal, quotaRejections, triggerRuns,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		actionsTotal:    actionsTotal,
		quotaRejections: quotaRejections,
		triggerRuns:     triggerRuns,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordAction counts a finished action.
func (c *Collector) RecordAction(actionType, status string) {
	c.actionsTotal.WithLabelValues(actionType, status).Inc()
}

// RecordQuotaRejection counts a call blocked by rate limits.
func (c *Collector) RecordQuotaRejection(endpoint string) {
	c.quotaRejections.WithLabelValues(endpoint).Inc()
}

// RecordTriggerRun counts a periodic trigger execution.
func (c *Collector) RecordTriggerRun(trigger, outcome string) {
	c.triggerRuns.WithLabelValues(trigger, outcome).Inc()
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
