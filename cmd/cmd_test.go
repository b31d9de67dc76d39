package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/resource-graph-catalog-ingester/config"
	"github.com/azure/resource-graph-catalog-ingester/registry"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

const testConfig = `
providers:
  - id: prod
    query: resources
    scope:
      subscriptions: ["00000000-0000-0000-0000-000000000001"]
    ignoreResourceIdPatterns: ["/tmp-"]
    mapping:
      spec:
        owner: tags['catalog.owner']
`

func TestReadRecords(t *testing.T) {
	folder := t.TempDir()
	single := filepath.Join(folder, "single.json")
	many := filepath.Join(folder, "many.json")
	require.NoError(t, os.WriteFile(single, []byte(`{"id": "/a", "name": "a"}`), 0644))
	require.NoError(t, os.WriteFile(many, []byte(`[{"id": "/a"}, {"id": "/b"}]`), 0644))

	records, err := readRecords(single)
	require.NoError(t, err)
	require.Len(t, records, 1)
	name, _ := records[0].GetString("name")
	assert.Equal(t, "a", name)

	records, err = readRecords(many)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWriteEntities(t *testing.T) {
	entities := []value.Value{value.MustFromAny(map[string]any{"kind": "Resource"})}

	var out bytes.Buffer
	require.NoError(t, writeEntities(&out, entities, "json"))
	assert.Contains(t, out.String(), `"kind": "Resource"`)

	out.Reset()
	require.NoError(t, writeEntities(&out, entities, "yaml"))
	assert.Contains(t, out.String(), "kind: Resource")

	assert.Error(t, writeEntities(&out, entities, "xml"))
}

func TestDescribeProvider(t *testing.T) {
	_, providers, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	var out bytes.Buffer
	describeProvider(&out, providers[0])

	assert.Contains(t, out.String(), "provider: azure-resource-graph-prod")
	assert.Contains(t, out.String(), "locationKey: azure-resource-graph-prod:prod")
	assert.Contains(t, out.String(), "ignore: /tmp-")
	assert.Contains(t, out.String(), "spec.owner <- tags['catalog.owner']")
}

func TestNewRegistryClient(t *testing.T) {
	defer viper.Reset()
	ctx := context.Background()

	viper.Set("registry", registrySinkLog)
	client, closeRegistry, err := newRegistryClient(ctx)
	require.NoError(t, err)
	closeRegistry()
	assert.IsType(t, &registry.LogRegistryClient{}, client)

	viper.Set("registry", registrySinkFile)
	viper.Set("outputPath", t.TempDir())
	viper.Set("format", "yaml")
	client, closeRegistry, err = newRegistryClient(ctx)
	require.NoError(t, err)
	closeRegistry()
	assert.IsType(t, &registry.FileRegistryClient{}, client)

	viper.Set("registry", registrySinkSqlite)
	viper.Set("databasePath", filepath.Join(t.TempDir(), "catalog.db"))
	client, closeRegistry, err = newRegistryClient(ctx)
	require.NoError(t, err)
	closeRegistry()
	assert.IsType(t, &registry.SqliteRegistryClient{}, client)

	viper.Set("registry", "kafka")
	_, _, err = newRegistryClient(ctx)
	assert.Error(t, err)
}
