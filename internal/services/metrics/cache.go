// Package metrics composes cached bucket counts into windowed counts and
// hourly summaries.
package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/timebucket"
)

// RemoteCounter counts records in a window against the remote source.
type RemoteCounter interface {
	Count(ctx context.Context, q models.CountQuery) models.CountResult
}

// Store persists bucket counts by key.
type Store interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64) error
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// CacheOptions configures a WindowedCountCache.
type CacheOptions struct {
	Clock        Clock
	WidthMinutes int
	Concurrency  int
}

// CacheCounters reports bucket lookups since the cache was created.
type CacheCounters struct {
	Hits   int64
	Misses int64
}

// WindowedCountCache answers window counts from cached aligned buckets plus
// live counts for the unaligned margins.
type WindowedCountCache struct {
	counter     RemoteCounter
	store       Store
	clock       Clock
	width       int
	concurrency int
	hits        atomic.Int64
	misses      atomic.Int64
}

// NewWindowedCountCache validates the bucket width and returns a cache.
func NewWindowedCountCache(counter RemoteCounter, store Store, opts CacheOptions) (*WindowedCountCache, error) {
	if opts.WidthMinutes == 0 {
		opts.WidthMinutes = timebucket.DefaultWidthMinutes
	}
	if err := timebucket.ValidateWidth(opts.WidthMinutes); err != nil {
		return nil, err
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &WindowedCountCache{
		counter:     counter,
		store:       store,
		clock:       opts.Clock,
		width:       opts.WidthMinutes,
		concurrency: opts.Concurrency,
	}, nil
}

// WidthMinutes returns the bucket width.
func (c *WindowedCountCache) WidthMinutes() int {
	return c.width
}

// Stats returns the hit and miss counters.
func (c *WindowedCountCache) Stats() CacheCounters {
	return CacheCounters{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// CacheKey derives the storage key for one bucket.
func CacheKey(selector models.EntitySelector, accountID string, widthMinutes int, start time.Time) string {
	return fmt.Sprintf("%s:%s:%dm:%s", selector, accountID, widthMinutes, start.UTC().Format(time.RFC3339))
}

// CountWindow returns the number of records in window. Remote failures
// degrade to a partial result; the only error is context cancellation.
func (c *WindowedCountCache) CountWindow(ctx context.Context, accountID string, window models.TimeWindow, selector models.EntitySelector) (models.CountResult, error) {
	var total models.CountResult
	if window.IsEmpty() {
		return total, nil
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}

	d := timebucket.Decompose(window, c.width)
	if !d.HasBuckets() {
		return c.live(ctx, accountID, window, selector), ctx.Err()
	}

	if d.Leading != nil {
		total = total.Add(c.live(ctx, accountID, *d.Leading, selector))
	}

	now := c.clock.Now()
	results := make([]models.CountResult, len(d.Buckets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, bucket := range d.Buckets {
		i, bucket := i, bucket
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.countBucket(gctx, accountID, bucket, selector, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	for _, r := range results {
		total = total.Add(r)
	}

	if d.Trailing != nil {
		total = total.Add(c.live(ctx, accountID, *d.Trailing, selector))
	}
	return total, ctx.Err()
}

func (c *WindowedCountCache) live(ctx context.Context, accountID string, window models.TimeWindow, selector models.EntitySelector) models.CountResult {
	return c.counter.Count(ctx, models.CountQuery{AccountID: accountID, Window: window, Selector: selector})
}

// countBucket serves one aligned bucket from the store or counts and stores
// it. Buckets still open at now and partial counts are never stored.
func (c *WindowedCountCache) countBucket(ctx context.Context, accountID string, bucket models.Bucket, selector models.EntitySelector, now time.Time) models.CountResult {
	if bucket.End.After(now) {
		return c.live(ctx, accountID, bucket, selector)
	}

	key := CacheKey(selector, accountID, c.width, bucket.Start)
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed, counting live", "key", key, "error", err)
	}
	if err == nil && found {
		c.hits.Add(1)
		logger.Debug("cache hit", "key", key, "count", value)
		return models.CountResult{Count: value}
	}

	c.misses.Add(1)
	result := c.live(ctx, accountID, bucket, selector)
	if result.Partial() {
		logger.Debug("partial bucket count not cached", "key", key, "count", result.Count)
		return result
	}
	if err := c.store.Set(ctx, key, result.Count); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
	return result
}
