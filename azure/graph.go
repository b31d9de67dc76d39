package azure

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"

	"github.com/azure/resource-graph-catalog-ingester/types"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

var guidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

const emptyGuid = "00000000-0000-0000-0000-000000000000"

// IsSubscriptionID reports whether id looks like a usable subscription id.
func IsSubscriptionID(id string) bool {
	return id != emptyGuid && guidRegex.MatchString(id)
}

type IResourceGraphClient interface {
	Query(ctx context.Context, scope types.Scope, query string, continuationToken *string) (*types.PageResult, error)
}

// resourcesAPI is the part of armresourcegraph.Client used here.
type resourcesAPI interface {
	Resources(ctx context.Context, query armresourcegraph.QueryRequest, options *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error)
}

type ResourceGraphClient struct {
	Cloud    Cloud
	PageSize int32
	Logger   *logrus.Logger
	client   resourcesAPI
}

// NewResourceGraphClient builds a client authenticated with the default
// Azure credential chain against the given cloud.
func NewResourceGraphClient(cloudName string, pageSize int32, logger *logrus.Logger) (*ResourceGraphClient, error) {
	azureCloud, err := LookupCloud(cloudName)
	if err != nil {
		return nil, err
	}

	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		ClientOptions: azcore.ClientOptions{Cloud: azureCloud.Configuration},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}

	resourcesClient, err := armresourcegraph.NewClient(cred, &arm.ClientOptions{
		ClientOptions: azcore.ClientOptions{Cloud: azureCloud.Configuration},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Resource Graph client: %w", err)
	}

	return newResourceGraphClient(azureCloud, pageSize, resourcesClient, logger), nil
}

func newResourceGraphClient(azureCloud Cloud, pageSize int32, client resourcesAPI, logger *logrus.Logger) *ResourceGraphClient {
	return &ResourceGraphClient{
		Cloud:    azureCloud,
		PageSize: pageSize,
		Logger:   logger,
		client:   client,
	}
}

// Query runs one page of query against scope. The returned continuation token
// is nil on the last page.
func (graph *ResourceGraphClient) Query(ctx context.Context, scope types.Scope, query string, continuationToken *string) (*types.PageResult, error) {
	queryRequest := graph.buildQueryRequest(scope, query, continuationToken)

	graph.Logger.Tracef("Query: %s", query)
	res, err := graph.client.Resources(ctx, queryRequest, nil)
	if err != nil {
		return nil, err
	}

	data, err := convertData(res.QueryResponse.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding Resource Graph response: %w", err)
	}

	if res.QueryResponse.ResultTruncated != nil && *res.QueryResponse.ResultTruncated == armresourcegraph.ResultTruncatedTrue && res.QueryResponse.SkipToken == nil {
		graph.Logger.Warn("Resource Graph truncated the result without a skip token; add an id column to the query to enable paging")
	}

	var nextToken *string
	if res.QueryResponse.SkipToken != nil && *res.QueryResponse.SkipToken != "" {
		nextToken = res.QueryResponse.SkipToken
	}

	graph.Logger.Debugf("Resource Graph returned %d records", len(data))
	return &types.PageResult{Data: data, ContinuationToken: nextToken}, nil
}

func (graph *ResourceGraphClient) buildQueryRequest(scope types.Scope, query string, continuationToken *string) armresourcegraph.QueryRequest {
	options := &armresourcegraph.QueryRequestOptions{
		AuthorizationScopeFilter: to.Ptr(armresourcegraph.AuthorizationScopeFilterAtScopeAndBelow),
		ResultFormat:             to.Ptr(armresourcegraph.ResultFormatObjectArray),
		SkipToken:                continuationToken,
	}
	if graph.PageSize > 0 {
		options.Top = to.Ptr(graph.PageSize)
	}

	queryRequest := armresourcegraph.QueryRequest{
		Query:   to.Ptr(query),
		Options: options,
	}
	if len(scope.Subscriptions) > 0 {
		queryRequest.Subscriptions = toPtrSlice(scope.Subscriptions)
	}
	if len(scope.ManagementGroups) > 0 {
		queryRequest.ManagementGroups = toPtrSlice(scope.ManagementGroups)
	}
	return queryRequest
}

func toPtrSlice(values []string) []*string {
	pointers := make([]*string, len(values))
	for i := range values {
		pointers[i] = to.Ptr(values[i])
	}
	return pointers
}

// convertData turns the object-array payload into records. Rows that are not
// objects are kept and left for synthesis to reject.
func convertData(data any) ([]value.Value, error) {
	if data == nil {
		return []value.Value{}, nil
	}
	rows, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of rows, got %T", data)
	}

	records := make([]value.Value, 0, len(rows))
	for i, row := range rows {
		record, err := value.FromAny(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}
