// Package metrics exposes warden's Prometheus instrumentation. The
// Collector implements the enforcement engine's Metrics contract and owns
// the registry the HTTP handler serves.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetgrid/warden/pkg/config"
	"fleetgrid/warden/pkg/enforce"
)

// Collector records enforcement telemetry into Prometheus metrics.
//
// Metrics:
//   - warden_enforcements_total: enforcement calls by tenant and decision
//   - warden_enforcement_duration_seconds: end-to-end call latency
//   - warden_degraded_evaluations_total: degraded rule evaluations by tenant
//   - warden_index_rebuilds_total: rule index rebuilds
//   - warden_index_rules: rule count of the active index snapshot
//   - warden_audit_appends_total: audit appends by status
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	enforcementsTotal   *prometheus.CounterVec
	enforcementDuration *prometheus.HistogramVec
	degradedTotal       *prometheus.CounterVec
	rebuildsTotal       prometheus.Counter
	indexRules          prometheus.Gauge
	auditAppendsTotal   *prometheus.CounterVec
}

// NewCollector creates and registers the metrics. If registry is nil a
// private registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "warden"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		enforcementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "enforcements_total",
				Help:      "Total number of enforcement calls",
			},
			[]string{"tenant", "decision"},
		),

		enforcementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "enforcement_duration_seconds",
				Help:      "End-to-end duration of enforcement calls",
				// Synchronous in-path calls; sub-millisecond to low tens of ms.
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"tenant"},
		),

		degradedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "degraded_evaluations_total",
				Help:      "Rule evaluations that fell back to fail-closed semantics",
			},
			[]string{"tenant"},
		),

		rebuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "index_rebuilds_total",
				Help:      "Total number of rule index rebuilds",
			},
		),

		indexRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "index_rules",
				Help:      "Rule count of the active index snapshot",
			},
		),

		auditAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_appends_total",
				Help:      "Audit log appends by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.enforcementsTotal,
		c.enforcementDuration,
		c.degradedTotal,
		c.rebuildsTotal,
		c.indexRules,
		c.auditAppendsTotal,
	)
	return c
}

// RecordEnforcement records one completed enforcement call.
func (c *Collector) RecordEnforcement(tenantID string, decision enforce.Decision, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.enforcementsTotal.WithLabelValues(tenantID, string(decision)).Inc()
	c.enforcementDuration.WithLabelValues(tenantID).Observe(duration.Seconds())
}

// RecordDegraded records a degraded rule evaluation.
func (c *Collector) RecordDegraded(tenantID string) {
	if !c.config.Enabled {
		return
	}
	c.degradedTotal.WithLabelValues(tenantID).Inc()
}

// RecordIndexRebuild records a completed index rebuild.
func (c *Collector) RecordIndexRebuild(ruleCount int) {
	if !c.config.Enabled {
		return
	}
	c.rebuildsTotal.Inc()
	c.indexRules.Set(float64(ruleCount))
}

// RecordAuditAppend records the outcome of an audit append.
func (c *Collector) RecordAuditAppend(success bool) {
	if !c.config.Enabled {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	c.auditAppendsTotal.WithLabelValues(status).Inc()
}

// Registry returns the Prometheus registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
