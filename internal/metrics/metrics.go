// Package metrics records run outcomes as Prometheus metrics and pushes
// them to a pushgateway, since a batch run has no endpoint to scrape.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/adc-ontology-enricher/internal/domain"
)

const namespace = "adc_enrich"

// DefaultJob names the pushgateway job when none is configured.
const DefaultJob = "adc-enrich"

// RunMetrics holds the collectors of one run.
type RunMetrics struct {
	registry *prometheus.Registry

	fields         *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	domainDuration *prometheus.GaugeVec
	runDuration    prometheus.Gauge
	records        prometheus.Gauge
	drugs          prometheus.Gauge
	unknowns       prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		fields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_total",
			Help:      "Enrichment fields produced, by domain and match status.",
		}, []string{"domain", "status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Distinct raw values resolved, by domain.",
		}, []string{"domain"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_errors_total",
			Help:      "Registry failures that degraded to unknown, by domain.",
		}, []string{"domain"}),
		domainDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "domain_duration_seconds",
			Help:      "Wall time of each domain adapter.",
		}, []string{"domain"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the whole run.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records in the corpus.",
		}),
		drugs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drugs",
			Help:      "Drug items in the corpus.",
		}),
		unknowns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unknowns",
			Help:      "Rows of the unknowns report.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}
	m.registry.MustRegister(m.fields, m.lookups, m.upstreamErrors,
		m.domainDuration, m.runDuration, m.records, m.drugs, m.unknowns, m.lastSuccess)
	return m
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished run.
func (m *RunMetrics) Observe(s domain.RunSummary) {
	for _, d := range s.Domains {
		if d.Skipped {
			continue
		}
		for status, n := range d.Statuses {
			m.fields.WithLabelValues(d.Domain, string(status)).Add(float64(n))
		}
		m.lookups.WithLabelValues(d.Domain).Add(float64(d.Lookups))
		m.upstreamErrors.WithLabelValues(d.Domain).Add(float64(d.UpstreamErrors))
		m.domainDuration.WithLabelValues(d.Domain).Set(d.Duration.Seconds())
	}
	m.runDuration.Set(s.Duration.Seconds())
	m.records.Set(float64(s.Records))
	m.drugs.Set(float64(s.Drugs))
	m.unknowns.Set(float64(s.Unknowns))
	m.lastSuccess.Set(float64(s.StartedAt.Add(s.Duration).Unix()))
}

// Push sends every collector to the pushgateway at url, replacing the
// previous push of job.
func (m *RunMetrics) Push(ctx context.Context, url, job, runID string) error {
	if job == "" {
		job = DefaultJob
	}
	pusher := push.New(url, job).Gatherer(m.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
