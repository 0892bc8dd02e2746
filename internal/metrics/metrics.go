// Package metrics owns the Prometheus registry and the CRM collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector exported by the server
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	WorkflowExecutions  *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	PlanLimitRejections *prometheus.CounterVec
}

// New registers all collectors on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WorkflowExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_workflow_executions_total",
			Help: "Workflow executions by trigger and final status.",
		}, []string{"trigger", "status"}),
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_audit_write_failures_total",
			Help: "Audit log writes that failed and were dropped.",
		}),
		PlanLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_plan_limit_rejections_total",
			Help: "Creates rejected by plan limits.",
		}, []string{"resource"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration, m.WorkflowExecutions,
		m.AuditWriteFailures, m.PlanLimitRejections,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
