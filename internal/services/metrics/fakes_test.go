package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// fakeCounter records every query and answers with countFn.
type fakeCounter struct {
	mu      sync.Mutex
	queries []models.CountQuery
	countFn func(q models.CountQuery) models.CountResult
}

func constantCounter(n int64) *fakeCounter {
	return &fakeCounter{countFn: func(models.CountQuery) models.CountResult {
		return models.CountResult{Count: n, Pages: 1}
	}}
}

func (f *fakeCounter) Count(_ context.Context, q models.CountQuery) models.CountResult {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.countFn(q)
}

func (f *fakeCounter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeCounter) Windows() []models.TimeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	windows := make([]models.TimeWindow, len(f.queries))
	for i, q := range f.queries {
		windows[i] = q.Window
	}
	return windows
}

type memStore struct {
	mu      sync.Mutex
	values  map[string]int64
	getErr  error
	setErr  error
	sets    int
	lookups int
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]int64)}
}

func (s *memStore) Get(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.getErr != nil {
		return 0, false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *memStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

var errStore = errors.New("disk I/O error")

func at(hour, minute int) time.Time {
	return time.Date(2023, 1, 1, hour, minute, 0, 0, time.UTC)
}

func window(start, end time.Time) models.TimeWindow {
	return models.TimeWindow{Start: start, End: end}
}
