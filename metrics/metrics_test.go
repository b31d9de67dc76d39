package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreGathered(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.RecordFetch("prod", 2, 10)
	m.RecordMapped("prod", 8)
	m.RecordMappingErrors("prod", 1)
	m.RecordSkipped("prod", "no_entity", 1)
	m.RecordPublished("prod", 8)
	m.RecordRun("prod", "success")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				values[family.GetName()] += metric.GetCounter().GetValue()
			}
			if metric.GetGauge() != nil {
				values[family.GetName()] += metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, values["resource_graph_ingester_pages_fetched_total"])
	assert.Equal(t, 10.0, values["resource_graph_ingester_records_fetched_total"])
	assert.Equal(t, 8.0, values["resource_graph_ingester_entities_mapped_total"])
	assert.Equal(t, 1.0, values["resource_graph_ingester_mapping_errors_total"])
	assert.Equal(t, 1.0, values["resource_graph_ingester_records_skipped_total"])
	assert.Equal(t, 8.0, values["resource_graph_ingester_entities_published"])
	assert.Equal(t, 1.0, values["resource_graph_ingester_runs_total"])
}

func TestWriteToTextfile(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.RecordRun("prod", "failed")

	path := filepath.Join(t.TempDir(), "ingester.prom")
	require.NoError(t, m.WriteToTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), `resource_graph_ingester_runs_total{provider="prod",status="failed"} 1`))
}
