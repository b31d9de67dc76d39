package types

import "github.com/azure/resource-graph-catalog-ingester/value"

// PageResult is one page returned by the query collaborator. A nil
// ContinuationToken marks the final page.
type PageResult struct {
	Data              []value.Value
	ContinuationToken *string
}
