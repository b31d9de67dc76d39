package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "resource_graph_ingester"

// Metrics counts what ingestion runs fetched, mapped and published.
type Metrics struct {
	pagesFetched      *prometheus.CounterVec
	recordsFetched    *prometheus.CounterVec
	entitiesMapped    *prometheus.CounterVec
	mappingErrors     *prometheus.CounterVec
	recordsSkipped    *prometheus.CounterVec
	runs              *prometheus.CounterVec
	entitiesPublished *prometheus.GaugeVec

	registry *prometheus.Registry
}

func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		pagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Total number of Resource Graph pages fetched",
			},
			[]string{"provider"},
		),
		recordsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_fetched_total",
				Help:      "Total number of Resource Graph records fetched",
			},
			[]string{"provider"},
		),
		entitiesMapped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_mapped_total",
				Help:      "Total number of records successfully turned into entities",
			},
			[]string{"provider"},
		),
		mappingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mapping_errors_total",
				Help:      "Total number of records that failed synthesis",
			},
			[]string{"provider"},
		),
		recordsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_skipped_total",
				Help:      "Total number of records left out of the published set",
			},
			[]string{"provider", "reason"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of ingestion runs",
			},
			[]string{"provider", "status"},
		),
		entitiesPublished: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entities_published",
				Help:      "Number of entities in the last published set",
			},
			[]string{"provider"},
		),
	}

	collectors := []prometheus.Collector{
		m.pagesFetched,
		m.recordsFetched,
		m.entitiesMapped,
		m.mappingErrors,
		m.recordsSkipped,
		m.runs,
		m.entitiesPublished,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) RecordFetch(provider string, pages int, records int) {
	m.pagesFetched.WithLabelValues(provider).Add(float64(pages))
	m.recordsFetched.WithLabelValues(provider).Add(float64(records))
}

func (m *Metrics) RecordMapped(provider string, count int) {
	m.entitiesMapped.WithLabelValues(provider).Add(float64(count))
}

func (m *Metrics) RecordMappingErrors(provider string, count int) {
	m.mappingErrors.WithLabelValues(provider).Add(float64(count))
}

func (m *Metrics) RecordSkipped(provider string, reason string, count int) {
	m.recordsSkipped.WithLabelValues(provider, reason).Add(float64(count))
}

func (m *Metrics) RecordPublished(provider string, count int) {
	m.entitiesPublished.WithLabelValues(provider).Set(float64(count))
}

func (m *Metrics) RecordRun(provider string, status string) {
	m.runs.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes all metrics in the text exposition format, suitable
// for the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
