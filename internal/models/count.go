package models

import "time"

// CountQuery describes a single remote count request.
type CountQuery struct {
	AccountID string
	Window    TimeWindow
	Selector  EntitySelector
}

// CountResult carries a count together with how complete it is.
// A result is partial when a page failed or the page limit was reached;
// the count then reflects only the pages that were fetched.
type CountResult struct {
	Count        int64
	Pages        int
	PagesFailed  int
	LimitReached bool
}

// Partial reports whether the count may be an undercount.
func (r CountResult) Partial() bool {
	return r.PagesFailed > 0 || r.LimitReached
}

// Add merges another result into r.
func (r CountResult) Add(other CountResult) CountResult {
	return CountResult{
		Count:        r.Count + other.Count,
		Pages:        r.Pages + other.Pages,
		PagesFailed:  r.PagesFailed + other.PagesFailed,
		LimitReached: r.LimitReached || other.LimitReached,
	}
}

// CacheEntry is a single stored bucket count.
type CacheEntry struct {
	Timestamp time.Time
	Key       string
	Value     int64
}

// CacheStats summarizes the contents of the bucket cache.
type CacheStats struct {
	Oldest  time.Time `json:"oldest,omitzero"`
	Newest  time.Time `json:"newest,omitzero"`
	Path    string    `json:"path"`
	Entries int64     `json:"entries"`
	Hits    int64     `json:"hits"`
	Misses  int64     `json:"misses"`
}
