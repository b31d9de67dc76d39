package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/resource-graph-catalog-ingester/pathexpr"
	"github.com/azure/resource-graph-catalog-ingester/types"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

const subscriptionID = "0b1f6471-1bf0-4dda-aec3-111122223333"

func validRaw() RawProvider {
	return RawProvider{
		ID:    "production",
		Query: "resources | where type =~ 'microsoft.storage/storageaccounts'",
		Scope: types.Scope{Subscriptions: []string{subscriptionID}},
	}
}

func TestNewProviderConfig_AppliesDefaults(t *testing.T) {
	providerConfig, err := NewProviderConfig(validRaw())
	require.NoError(t, err)

	assert.Equal(t, 100, providerConfig.MaxPages)
	assert.Equal(t, DefaultScheduleFrequency, providerConfig.Schedule.Frequency)
	assert.Equal(t, DefaultScheduleTimeout, providerConfig.Schedule.Timeout)
	assert.Nil(t, providerConfig.Mapping)
	assert.Equal(t, "azure-resource-graph-production", providerConfig.ProviderName())
	assert.Equal(t, "azure-resource-graph-production:production", providerConfig.LocationKey())
}

func TestNewProviderConfig_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(raw *RawProvider)
		message string
	}{
		{name: "missing id", mutate: func(raw *RawProvider) { raw.ID = "" }, message: "id is required"},
		{name: "missing query", mutate: func(raw *RawProvider) { raw.Query = "  " }, message: "query is required"},
		{name: "missing scope", mutate: func(raw *RawProvider) { raw.Scope = types.Scope{} }, message: "scope.subscriptions is required when ManagementGroups is not set"},
		{name: "empty scope lists", mutate: func(raw *RawProvider) { raw.Scope = types.Scope{Subscriptions: []string{}} }, message: "scope.subscriptions or scope.managementGroups must be provided"},
		{name: "invalid subscription", mutate: func(raw *RawProvider) { raw.Scope.Subscriptions = []string{"prod"} }, message: "invalid subscription id \"prod\""},
		{name: "empty guid subscription", mutate: func(raw *RawProvider) {
			raw.Scope.Subscriptions = []string{"00000000-0000-0000-0000-000000000000"}
		}, message: "invalid subscription id"},
		{name: "zero max pages", mutate: func(raw *RawProvider) { zero := 0; raw.MaxPages = &zero }, message: "maxPages must be at least 1"},
		{name: "bad schedule", mutate: func(raw *RawProvider) { raw.Schedule.Timeout = "soon" }, message: "schedule.timeout"},
		{name: "bad ignore pattern", mutate: func(raw *RawProvider) { raw.IgnoreResourceIDPatterns = []string{"("} }, message: "ignoreResourceIdPatterns"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			raw := validRaw()
			test.mutate(&raw)

			providerConfig, err := NewProviderConfig(raw)
			require.Error(t, err)
			assert.Nil(t, providerConfig)
			assert.Contains(t, err.Error(), test.message)

			var configErr *ConfigurationError
			assert.True(t, errors.As(err, &configErr))
		})
	}
}

func TestNewProviderConfig_ManagementGroupScopeOnly(t *testing.T) {
	raw := validRaw()
	raw.Scope = types.Scope{ManagementGroups: []string{"platform"}}

	providerConfig, err := NewProviderConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"platform"}, providerConfig.Scope.ManagementGroups)
}

func TestNewProviderConfig_CompilesMapping(t *testing.T) {
	raw := validRaw()
	raw.Mapping = map[string]any{
		"spec": map[string]any{"owner": "tags['catalog.owner']"},
	}

	providerConfig, err := NewProviderConfig(raw)
	require.NoError(t, err)
	require.NotNil(t, providerConfig.Mapping)

	record := value.MustFromAny(map[string]any{"tags": map[string]any{"catalog.owner": "team-a"}})
	output := providerConfig.Mapping.Apply(record)
	spec, _ := output.Get("spec")
	owner, _ := spec.GetString("owner")
	assert.Equal(t, "team-a", owner)
}

func TestNewProviderConfig_RejectsMalformedMapping(t *testing.T) {
	raw := validRaw()
	raw.Mapping = map[string]any{"spec": map[string]any{"owner": "tags['catalog.owner'"}}

	_, err := NewProviderConfig(raw)
	require.Error(t, err)

	var configErr *ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "production", configErr.ProviderID)

	var syntaxErr *pathexpr.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

const sampleConfig = `
cloud: AzureChina
pageSize: 500
providers:
  - id: storage
    query: resources | where type =~ 'microsoft.storage/storageaccounts'
    scope:
      subscriptions:
        - 0b1f6471-1bf0-4dda-aec3-111122223333
    schedule:
      frequency: 30m
      timeout: 3m
    defaultOwner: platform-team
    maxPages: 5
    ignoreResourceIdPatterns:
      - "/resourceGroups/tmp-"
    mapping:
      apiVersion: backstage.io/v1alpha1
      metadata:
        annotations:
          backstage.io/techdocs-ref: "tags['docs.url']"
      spec:
        owner: "tags['catalog.owner']"
        lifecycle: production
  - id: network
    query: resources | where type startswith 'microsoft.network'
    scope:
      managementGroups: [platform]
`

func TestParse(t *testing.T) {
	file, providers, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "AzureChina", file.Cloud)
	assert.Equal(t, int32(500), file.PageSize)
	require.Len(t, providers, 2)

	storage := providers[0]
	assert.Equal(t, "storage", storage.ID)
	assert.Equal(t, 5, storage.MaxPages)
	assert.Equal(t, "platform-team", storage.DefaultOwner)
	assert.Equal(t, 30*time.Minute, storage.Schedule.Frequency)
	assert.Equal(t, 3*time.Minute, storage.Schedule.Timeout)
	require.Len(t, storage.IgnoreResourceIDPatterns, 1)
	require.NotNil(t, storage.Mapping)

	// Keys keep their case and punctuation.
	spec := storage.Mapping.Spec()
	_, hasAPIVersion := spec.Get("apiVersion")
	assert.True(t, hasAPIVersion)
	metadata, _ := spec.Get("metadata")
	annotations, _ := metadata.Get("annotations")
	_, hasTechdocs := annotations.Get("backstage.io/techdocs-ref")
	assert.True(t, hasTechdocs)

	network := providers[1]
	assert.Equal(t, 100, network.MaxPages)
	assert.Equal(t, []string{"platform"}, network.Scope.ManagementGroups)
}

func TestParse_DuplicateProviderIDs(t *testing.T) {
	doc := `
providers:
  - id: a
    query: resources
    scope: {managementGroups: [root]}
  - id: a
    query: resources
    scope: {managementGroups: [root]}
`
	_, _, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider id")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, _, err := Parse([]byte("providers: ["))
	var configErr *ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	_, providers, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, providers, 2)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	_, providers, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	all, err := Select(providers, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	selected, err := Select(providers, []string{"network"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "network", selected[0].ID)

	_, err = Select(providers, []string{"compute"})
	assert.Error(t, err)
}
