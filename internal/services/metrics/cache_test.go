package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/db"
	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/timebucket"
)

func newCache(t *testing.T, counter RemoteCounter, store Store, opts CacheOptions) *WindowedCountCache {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = fixedClock{t: at(23, 0)}
	}
	c, err := NewWindowedCountCache(counter, store, opts)
	if err != nil {
		t.Fatalf("NewWindowedCountCache failed: %v", err)
	}
	return c
}

func TestNewWindowedCountCache_Validation(t *testing.T) {
	_, err := NewWindowedCountCache(constantCounter(1), newMemStore(), CacheOptions{WidthMinutes: 7})
	if !errors.Is(err, timebucket.ErrInvalidWidth) {
		t.Errorf("expected ErrInvalidWidth, got %v", err)
	}

	c, err := NewWindowedCountCache(constantCounter(1), newMemStore(), CacheOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c.WidthMinutes() != timebucket.DefaultWidthMinutes {
		t.Errorf("WidthMinutes() = %d", c.WidthMinutes())
	}
	if c.concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", c.concurrency)
	}
}

func TestCacheKey(t *testing.T) {
	start := time.Date(2023, 1, 1, 7, 15, 0, 0, time.FixedZone("EST", -5*3600))
	got := CacheKey(models.ScoreResultsUpdated, "acct-1", 15, start)
	want := "score_results_updated:acct-1:15m:2023-01-01T12:15:00Z"
	if got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}

	other := CacheKey(models.ItemsCreated, "acct-1", 15, start)
	if other == got {
		t.Error("selectors must produce distinct keys")
	}
	if CacheKey(models.ItemsCreated, "acct-1", 30, start) == other {
		t.Error("widths must produce distinct keys")
	}
}

func TestCountWindow_EmptyWindow(t *testing.T) {
	counter := constantCounter(5)
	c := newCache(t, counter, newMemStore(), CacheOptions{})

	res, err := c.CountWindow(context.Background(), "acct", window(at(12, 0), at(12, 0)), models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 0 || counter.Calls() != 0 {
		t.Errorf("expected zero without remote calls, got %+v after %d calls", res, counter.Calls())
	}
}

func TestCountWindow_MissThenHit(t *testing.T) {
	counter := constantCounter(10)
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 15})
	w := window(at(12, 0), at(13, 0))

	first, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if first.Count != 40 || counter.Calls() != 4 {
		t.Fatalf("first call: count=%d calls=%d", first.Count, counter.Calls())
	}
	if store.Len() != 4 {
		t.Errorf("expected 4 cached buckets, got %d", store.Len())
	}
	if key := CacheKey(models.ItemsCreated, "acct", 15, at(12, 30)); store.values[key] != 10 {
		t.Errorf("bucket %s = %d", key, store.values[key])
	}

	second, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if second.Count != first.Count {
		t.Errorf("second count = %d, want %d", second.Count, first.Count)
	}
	if counter.Calls() != 4 {
		t.Errorf("second call should be served from cache, calls = %d", counter.Calls())
	}

	stats := c.Stats()
	if stats.Hits != 4 || stats.Misses != 4 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCountWindow_KeysIsolateAccountsAndSelectors(t *testing.T) {
	counter := constantCounter(3)
	c := newCache(t, counter, newMemStore(), CacheOptions{WidthMinutes: 60})
	w := window(at(12, 0), at(13, 0))

	for _, acct := range []string{"a", "b"} {
		for _, sel := range models.AllSelectors() {
			if _, err := c.CountWindow(context.Background(), acct, w, sel); err != nil {
				t.Fatal(err)
			}
		}
	}
	if counter.Calls() != 4 {
		t.Errorf("each account/selector pair needs its own bucket, calls = %d", counter.Calls())
	}
}

func TestCountWindow_Margins(t *testing.T) {
	counter := &fakeCounter{countFn: func(q models.CountQuery) models.CountResult {
		return models.CountResult{Count: int64(q.Window.Duration() / time.Minute)}
	}}
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 15})
	w := window(at(12, 7), at(12, 52))

	res, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 45 {
		t.Errorf("Count = %d, want 45", res.Count)
	}

	want := []models.TimeWindow{
		window(at(12, 7), at(12, 15)),
		window(at(12, 15), at(12, 30)),
		window(at(12, 30), at(12, 45)),
		window(at(12, 45), at(12, 52)),
	}
	got := counter.Windows()
	if len(got) != len(want) {
		t.Fatalf("queried %d windows, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("query %d = %s, want %s", i, got[i], want[i])
		}
	}
	if store.Len() != 2 {
		t.Errorf("only aligned buckets are cached, got %d entries", store.Len())
	}

	if _, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated); err != nil {
		t.Fatal(err)
	}
	if counter.Calls() != 6 {
		t.Errorf("repeat should only query the two margins, calls = %d", counter.Calls())
	}
}

func TestCountWindow_NoAlignedBucket(t *testing.T) {
	counter := constantCounter(2)
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 15})

	res, err := c.CountWindow(context.Background(), "acct", window(at(12, 1), at(12, 14)), models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 2 || counter.Calls() != 1 {
		t.Errorf("count=%d calls=%d", res.Count, counter.Calls())
	}
	if store.lookups != 0 || store.Len() != 0 {
		t.Error("windows without buckets must bypass the store")
	}
}

func TestCountWindow_PartialBucketNotCached(t *testing.T) {
	calls := 0
	counter := &fakeCounter{countFn: func(models.CountQuery) models.CountResult {
		calls++
		if calls == 1 {
			return models.CountResult{Count: 3, Pages: 1, PagesFailed: 1}
		}
		return models.CountResult{Count: 8, Pages: 2}
	}}
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 60})
	w := window(at(12, 0), at(13, 0))

	first, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if first.Count != 3 || !first.Partial() {
		t.Errorf("first = %+v, want partial 3", first)
	}
	if store.Len() != 0 {
		t.Error("partial count must not be cached")
	}

	second, _ := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if second.Count != 8 || second.Partial() {
		t.Errorf("second = %+v, want complete 8", second)
	}
	if store.Len() != 1 {
		t.Error("complete count should be cached")
	}
}

func TestCountWindow_LimitReachedNotCached(t *testing.T) {
	counter := &fakeCounter{countFn: func(models.CountQuery) models.CountResult {
		return models.CountResult{Count: 100, Pages: 1, LimitReached: true}
	}}
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 30})

	res, _ := c.CountWindow(context.Background(), "acct", window(at(12, 0), at(13, 0)), models.ItemsCreated)
	if !res.LimitReached || res.Count != 200 {
		t.Errorf("unexpected result %+v", res)
	}
	if store.sets != 0 {
		t.Errorf("limit-truncated counts must not be stored, sets = %d", store.sets)
	}
}

func TestCountWindow_OpenBucketNotCached(t *testing.T) {
	counter := constantCounter(1)
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 15, Clock: fixedClock{t: at(12, 40)}})

	res, err := c.CountWindow(context.Background(), "acct", window(at(12, 0), at(13, 0)), models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 4 {
		t.Errorf("Count = %d, want 4", res.Count)
	}
	if store.Len() != 2 {
		t.Errorf("only buckets ended by now are cached, got %d", store.Len())
	}
	if _, ok := store.values[CacheKey(models.ItemsCreated, "acct", 15, at(12, 30))]; ok {
		t.Error("bucket [12:30,12:45) is still open and must not be cached")
	}
}

func TestCountWindow_StoreErrorsDegradeToMiss(t *testing.T) {
	counter := constantCounter(5)
	store := newMemStore()
	store.getErr = errStore
	store.setErr = errStore
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 30})

	res, err := c.CountWindow(context.Background(), "acct", window(at(12, 0), at(13, 0)), models.ItemsCreated)
	if err != nil {
		t.Fatalf("store errors must not fail the count: %v", err)
	}
	if res.Count != 10 || counter.Calls() != 2 {
		t.Errorf("count=%d calls=%d", res.Count, counter.Calls())
	}
}

func TestCountWindow_ConcurrentFanOut(t *testing.T) {
	counter := constantCounter(2)
	store := newMemStore()
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 15, Concurrency: 8})
	w := window(at(0, 0), at(12, 0))

	res, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 96 || counter.Calls() != 48 || store.Len() != 48 {
		t.Errorf("count=%d calls=%d stored=%d", res.Count, counter.Calls(), store.Len())
	}
}

func TestCountWindow_Cancelled(t *testing.T) {
	counter := constantCounter(1)
	c := newCache(t, counter, newMemStore(), CacheOptions{WidthMinutes: 15})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CountWindow(ctx, "acct", window(at(12, 0), at(13, 0)), models.ItemsCreated)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCountWindow_PersistsInSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics_cache.db")
	w := window(at(12, 0), at(14, 0))

	store, err := db.New(path)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	counter := constantCounter(7)
	c := newCache(t, counter, store, CacheOptions{WidthMinutes: 60})
	if res, _ := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated); res.Count != 14 {
		t.Fatalf("Count = %d, want 14", res.Count)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := db.New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	fresh := constantCounter(99)
	c = newCache(t, fresh, reopened, CacheOptions{WidthMinutes: 60})
	res, err := c.CountWindow(context.Background(), "acct", w, models.ItemsCreated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 14 || fresh.Calls() != 0 {
		t.Errorf("expected cached 14 with no calls, got %d after %d calls", res.Count, fresh.Calls())
	}
}
