package azure

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/resource-graph-catalog-ingester/types"
)

type mockResourcesAPI struct {
	Requests []armresourcegraph.QueryRequest
	Response armresourcegraph.ClientResourcesResponse
	Err      error
}

func (m *mockResourcesAPI) Resources(ctx context.Context, query armresourcegraph.QueryRequest, options *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error) {
	m.Requests = append(m.Requests, query)
	return m.Response, m.Err
}

func newTestClient(api resourcesAPI, pageSize int32) *ResourceGraphClient {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	azureCloud, _ := LookupCloud("")
	return newResourceGraphClient(azureCloud, pageSize, api, logger)
}

func responseWith(data any, skipToken *string) armresourcegraph.ClientResourcesResponse {
	return armresourcegraph.ClientResourcesResponse{
		QueryResponse: armresourcegraph.QueryResponse{
			Data:      data,
			SkipToken: skipToken,
		},
	}
}

func TestQuery_BuildsRequestForScope(t *testing.T) {
	api := &mockResourcesAPI{Response: responseWith([]any{}, nil)}
	client := newTestClient(api, 500)
	scope := types.Scope{
		Subscriptions:    []string{"11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222"},
		ManagementGroups: []string{"platform"},
	}

	_, err := client.Query(context.Background(), scope, "resources | project id, name", to.Ptr("token-1"))
	require.NoError(t, err)
	require.Len(t, api.Requests, 1)

	request := api.Requests[0]
	assert.Equal(t, "resources | project id, name", *request.Query)
	require.Len(t, request.Subscriptions, 2)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", *request.Subscriptions[0])
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", *request.Subscriptions[1])
	require.Len(t, request.ManagementGroups, 1)
	assert.Equal(t, "platform", *request.ManagementGroups[0])
	assert.Equal(t, "token-1", *request.Options.SkipToken)
	assert.Equal(t, int32(500), *request.Options.Top)
	assert.Equal(t, armresourcegraph.ResultFormatObjectArray, *request.Options.ResultFormat)
	assert.Equal(t, armresourcegraph.AuthorizationScopeFilterAtScopeAndBelow, *request.Options.AuthorizationScopeFilter)
}

func TestQuery_FirstPageHasNoSkipToken(t *testing.T) {
	api := &mockResourcesAPI{Response: responseWith([]any{}, nil)}
	client := newTestClient(api, 0)

	_, err := client.Query(context.Background(), types.Scope{ManagementGroups: []string{"root"}}, "resources", nil)
	require.NoError(t, err)

	request := api.Requests[0]
	assert.Nil(t, request.Options.SkipToken)
	assert.Nil(t, request.Options.Top)
	assert.Nil(t, request.Subscriptions)
}

func TestQuery_ConvertsRowsAndToken(t *testing.T) {
	rows := []any{
		map[string]any{"id": "/subscriptions/s1/a", "name": "a", "type": "t", "tags": map[string]any{"owner": "x"}},
		map[string]any{"id": "/subscriptions/s1/b", "name": "b", "type": "t", "tags": nil},
	}
	api := &mockResourcesAPI{Response: responseWith(rows, to.Ptr("next"))}
	client := newTestClient(api, 0)

	page, err := client.Query(context.Background(), types.Scope{Subscriptions: []string{"s"}}, "resources", nil)
	require.NoError(t, err)

	require.Len(t, page.Data, 2)
	name, ok := page.Data[0].GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "a", name)
	tags, ok := page.Data[1].Get("tags")
	assert.True(t, ok)
	assert.True(t, tags.IsNull())
	require.NotNil(t, page.ContinuationToken)
	assert.Equal(t, "next", *page.ContinuationToken)
}

func TestQuery_EmptySkipTokenIsLastPage(t *testing.T) {
	api := &mockResourcesAPI{Response: responseWith(nil, to.Ptr(""))}
	client := newTestClient(api, 0)

	page, err := client.Query(context.Background(), types.Scope{Subscriptions: []string{"s"}}, "resources", nil)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Nil(t, page.ContinuationToken)
}

func TestQuery_PropagatesErrors(t *testing.T) {
	api := &mockResourcesAPI{Err: errors.New("429 too many requests")}
	client := newTestClient(api, 0)

	page, err := client.Query(context.Background(), types.Scope{Subscriptions: []string{"s"}}, "resources", nil)
	assert.Nil(t, page)
	assert.EqualError(t, err, "429 too many requests")
}

func TestQuery_RejectsTablePayload(t *testing.T) {
	api := &mockResourcesAPI{Response: responseWith(map[string]any{"columns": []any{}, "rows": []any{}}, nil)}
	client := newTestClient(api, 0)

	_, err := client.Query(context.Background(), types.Scope{Subscriptions: []string{"s"}}, "resources", nil)
	assert.Error(t, err)
}

func TestLookupCloud(t *testing.T) {
	azureCloud, err := LookupCloud("azurechina")
	require.NoError(t, err)
	assert.Equal(t, "AzureChina", azureCloud.Name)
	assert.Equal(t, "https://portal.azure.cn/#", azureCloud.PortalBaseURL)

	azureCloud, err = LookupCloud("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCloudName, azureCloud.Name)

	_, err = LookupCloud("Mars")
	assert.Error(t, err)
}

func TestIsSubscriptionID(t *testing.T) {
	assert.True(t, IsSubscriptionID("0b1f6471-1bf0-4dda-aec3-111122223333"))
	assert.True(t, IsSubscriptionID("0B1F6471-1BF0-4DDA-AEC3-111122223333"))
	assert.False(t, IsSubscriptionID(emptyGuid))
	assert.False(t, IsSubscriptionID("not-a-guid"))
}
