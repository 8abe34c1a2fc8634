// Package metrics owns the prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photoattend/internal/checkin"
)

// Metrics groups the service collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	checkins    *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// New registers all collectors, including process and Go runtime metrics.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoattend",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photoattend",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoattend",
			Name:      "checkin_transitions_total",
			Help:      "Check-in pipeline state transitions.",
		}, []string{"from", "to"}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoattend",
			Name:      "checkins_total",
			Help:      "Finished check-in submissions by outcome.",
		}, []string{"outcome"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoattend",
			Name:      "events_published_total",
			Help:      "Queue publishes by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.transitions, m.checkins, m.published,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// Middleware counts requests by matched route. Unmatched routes share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObservePipeline is a checkin.WithObserver hook.
func (m *Metrics) ObservePipeline(from, to checkin.State) {
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	switch to {
	case checkin.Done:
		m.checkins.WithLabelValues("done").Inc()
	case checkin.Failed:
		m.checkins.WithLabelValues("failed_" + from.String()).Inc()
	}
}

// EventPublished records one queue publish attempt.
func (m *Metrics) EventPublished(err error) {
	if err != nil {
		m.published.WithLabelValues("error").Inc()
		return
	}
	m.published.WithLabelValues("ok").Inc()
}
