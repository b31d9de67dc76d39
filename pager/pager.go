// Package pager drives the paginated Resource Graph query loop.
package pager

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azure/resource-graph-catalog-ingester/types"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

const DefaultMaxPages = 100

// QueryFunc fetches one page. continuationToken is nil for the first page.
type QueryFunc func(ctx context.Context, scope types.Scope, query string, continuationToken *string) (*types.PageResult, error)

// PageFetchError aborts a fetch. Records collected before the failure are
// discarded, so a caller can never publish a failure-truncated set.
type PageFetchError struct {
	Page             int
	RecordsCollected int
	Err              error
}

func (err *PageFetchError) Error() string {
	return fmt.Sprintf("failed to retrieve resources from Resource Graph on page %d (%d records collected before the failure): %v", err.Page, err.RecordsCollected, err.Err)
}

func (err *PageFetchError) Unwrap() error {
	return err.Err
}

type Result struct {
	Records []value.Value
	Pages   int
	// Truncated is set when the page limit stopped the loop before the
	// query collaborator ran out of continuation tokens.
	Truncated bool
}

type Fetcher struct {
	Logger *logrus.Logger
}

func NewFetcher(logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		Logger: logger,
	}
}

// FetchAll calls queryFn until it stops returning a continuation token. When
// more than maxPages pages would be needed the loop stops with a warning and
// the records gathered so far are returned as the complete set.
func (fetcher *Fetcher) FetchAll(ctx context.Context, queryFn QueryFunc, scope types.Scope, query string, maxPages int) (*Result, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	records := []value.Value{}
	var continuationToken *string
	pages := 0

	for page := 1; ; page++ {
		if page > maxPages {
			fetcher.Logger.WithFields(logrus.Fields{
				"maxPages": maxPages,
				"records":  len(records),
			}).Warnf("Reached the limit of %d pages with %d records collected, treating the result as complete", maxPages, len(records))
			return &Result{Records: records, Pages: pages, Truncated: true}, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, &PageFetchError{Page: page, RecordsCollected: len(records), Err: err}
		}

		result, err := queryFn(ctx, scope, query, continuationToken)
		if err != nil {
			return nil, &PageFetchError{Page: page, RecordsCollected: len(records), Err: err}
		}
		pages++

		if result != nil {
			records = append(records, result.Data...)
		}

		fetcher.Logger.WithFields(logrus.Fields{
			"page":    page,
			"records": len(records),
		}).Debug("Fetched Resource Graph page")

		if result == nil || result.ContinuationToken == nil || *result.ContinuationToken == "" {
			break
		}
		continuationToken = result.ContinuationToken
	}

	return &Result{Records: records, Pages: pages}, nil
}
