package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// Default pagination limits.
const (
	DefaultPageSize = 1000
	DefaultMaxPages = 100
)

// awsDateTime is the timestamp format accepted by AppSync AWSDateTime fields.
const awsDateTime = "2006-01-02T15:04:05.000Z07:00"

const listItemsQuery = `
query ListItemByAccountIdAndCreatedAt(
	$accountId: String!, $startTime: String!, $endTime: String!, $limit: Int, $nextToken: String
) {
	listItemByAccountIdAndCreatedAt(
		accountId: $accountId,
		createdAt: { between: [$startTime, $endTime] },
		limit: $limit,
		nextToken: $nextToken
	) {
		items { id createdAt }
		nextToken
	}
}`

const listScoreResultsQuery = `
query ListScoreResultByAccountIdAndUpdatedAt(
	$accountId: String!, $startTime: String!, $endTime: String!, $limit: Int, $nextToken: String
) {
	listScoreResultByAccountIdAndUpdatedAt(
		accountId: $accountId,
		updatedAt: { between: [$startTime, $endTime] },
		limit: $limit,
		nextToken: $nextToken
	) {
		items { id updatedAt }
		nextToken
	}
}`

const listAccountByKeyQuery = `
query ListAccountByKey($key: String!) {
	listAccountByKey(key: $key) {
		items { id key name }
	}
}`

// querySpec binds a selector to its GraphQL query and timestamp field.
type querySpec struct {
	query string
	field string
}

var querySpecs = map[models.EntitySelector]querySpec{
	models.ItemsCreated:        {query: listItemsQuery, field: "listItemByAccountIdAndCreatedAt"},
	models.ScoreResultsUpdated: {query: listScoreResultsQuery, field: "listScoreResultByAccountIdAndUpdatedAt"},
}

type record struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (r record) timestamp(selector models.EntitySelector) string {
	if selector == models.ScoreResultsUpdated {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

type listPage struct {
	NextToken *string  `json:"nextToken"`
	Items     []record `json:"items"`
}

// Options configures pagination.
type Options struct {
	PageSize int
	MaxPages int
}

// Counter counts remote records in a time window.
type Counter struct {
	client   Querier
	pageSize int
	maxPages int
}

// New creates a counter over the given querier.
func New(client Querier, opts Options) *Counter {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Counter{
		client:   client,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
	}
}

// Count returns the number of matching records in the half-open window.
//
// It never returns an error. An empty window yields zero without a remote
// call. A failed page stops pagination and the pages fetched so far are
// returned with PagesFailed set; reaching MaxPages returns the count so far
// with LimitReached set.
func (c *Counter) Count(ctx context.Context, q models.CountQuery) models.CountResult {
	var result models.CountResult
	if q.Window.IsEmpty() {
		return result
	}

	spec, ok := querySpecs[q.Selector]
	if !ok {
		logger.Error("no query for entity selector", "selector", q.Selector.String())
		result.PagesFailed = 1
		return result
	}

	variables := map[string]any{
		"accountId": q.AccountID,
		"startTime": q.Window.Start.UTC().Format(awsDateTime),
		"endTime":   q.Window.End.UTC().Format(awsDateTime),
		"limit":     c.pageSize,
	}

	var nextToken *string
	for {
		if result.Pages >= c.maxPages {
			result.LimitReached = true
			logger.Warn("pagination limit reached, returning partial count",
				"selector", q.Selector.String(),
				"account", q.AccountID,
				"window", q.Window.String(),
				"pages", result.Pages,
				"count", result.Count,
			)
			return result
		}

		if nextToken != nil {
			variables["nextToken"] = *nextToken
		} else {
			delete(variables, "nextToken")
		}

		page, err := c.fetchPage(ctx, spec, variables)
		if err != nil {
			result.PagesFailed++
			logger.Warn("page fetch failed, returning partial count",
				"selector", q.Selector.String(),
				"account", q.AccountID,
				"window", q.Window.String(),
				"page", result.Pages+1,
				"count", result.Count,
				"error", err,
			)
			return result
		}

		result.Pages++
		result.Count += countInWindow(page.Items, q)

		if page.NextToken == nil || *page.NextToken == "" {
			return result
		}
		nextToken = page.NextToken
	}
}

func (c *Counter) fetchPage(ctx context.Context, spec querySpec, variables map[string]any) (*listPage, error) {
	var data map[string]*listPage
	if err := c.client.Execute(ctx, spec.query, variables, &data); err != nil {
		return nil, err
	}
	page := data[spec.field]
	if page == nil {
		return nil, fmt.Errorf("%w: response missing %s", ErrRemoteQuery, spec.field)
	}
	return page, nil
}

// countInWindow drops records stamped at or after the window end, which the
// inclusive between filter lets through. Records with an unparsable
// timestamp are counted.
func countInWindow(items []record, q models.CountQuery) int64 {
	var n int64
	for _, item := range items {
		raw := item.timestamp(q.Selector)
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			n++
			continue
		}
		if q.Window.Contains(ts) {
			n++
		}
	}
	return n
}

// ResolveAccountID looks up an account ID by its key.
func ResolveAccountID(ctx context.Context, client Querier, key string) (*models.Account, error) {
	if key == "" {
		return nil, errors.New("account key is required")
	}

	var data struct {
		ListAccountByKey struct {
			Items []models.Account `json:"items"`
		} `json:"listAccountByKey"`
	}
	if err := client.Execute(ctx, listAccountByKeyQuery, map[string]any{"key": key}, &data); err != nil {
		return nil, fmt.Errorf("failed to resolve account %q: %w", key, err)
	}
	if len(data.ListAccountByKey.Items) == 0 {
		return nil, fmt.Errorf("account not found: %s", key)
	}
	acc := data.ListAccountByKey.Items[0]
	return &acc, nil
}
