package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// scriptedWindows returns counts newest first, one per call.
type scriptedWindows struct {
	counts  []models.CountResult
	windows []models.TimeWindow
	err     error
}

func (s *scriptedWindows) CountWindow(_ context.Context, _ string, w models.TimeWindow, _ models.EntitySelector) (models.CountResult, error) {
	if s.err != nil {
		return models.CountResult{}, s.err
	}
	idx := len(s.windows)
	s.windows = append(s.windows, w)
	if idx < len(s.counts) {
		return s.counts[idx], nil
	}
	return models.CountResult{}, nil
}

func counts(values ...int64) []models.CountResult {
	out := make([]models.CountResult, len(values))
	for i, v := range values {
		out[i] = models.CountResult{Count: v}
	}
	return out
}

func TestBuildSummary_ConstantCounts(t *testing.T) {
	now := at(12, 0)
	counter := constantCounter(15)
	cache := newCache(t, counter, newMemStore(), CacheOptions{WidthMinutes: 60, Clock: fixedClock{t: now}})
	b := NewSummaryBuilder(cache, fixedClock{t: now}, time.UTC)

	s, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, 24)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.ChartData) != 24 {
		t.Fatalf("len(ChartData) = %d", len(s.ChartData))
	}
	if s.Total != 15*24 || s.AveragePerHour != 15 || s.PeakHourly != 15 || s.CurrentHourCount != 15 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.Partial {
		t.Error("summary should not be partial")
	}

	// every hour is a fully elapsed bucket, so a rebuild is served from the cache
	before := counter.Calls()
	if _, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, 24); err != nil {
		t.Fatal(err)
	}
	if counter.Calls() != before {
		t.Errorf("rebuild made %d remote calls", counter.Calls()-before)
	}
}

func TestBuildSummary_Chronological(t *testing.T) {
	now := time.Date(2023, 1, 1, 14, 37, 12, 0, time.UTC)
	counter := &scriptedWindows{counts: counts(5, 4, 3)}
	b := NewSummaryBuilder(counter, fixedClock{t: now}, time.UTC)

	s, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, 3)
	if err != nil {
		t.Fatal(err)
	}
	first, last := s.ChartData[0], s.ChartData[len(s.ChartData)-1]
	if !first.BucketStart.Before(last.BucketStart) {
		t.Errorf("chart not chronological: %v .. %v", first.BucketStart, last.BucketStart)
	}
	if !last.BucketEnd.Equal(now) {
		t.Errorf("last bucket ends %v, want %v", last.BucketEnd, now)
	}
	if s.CurrentHourCount != 5 {
		t.Errorf("CurrentHourCount = %d, want newest count 5", s.CurrentHourCount)
	}
	wantLabels := []string{"12 PM", "01 PM", "02 PM"}
	for i, want := range wantLabels {
		if s.ChartData[i].Label != want {
			t.Errorf("label %d = %q, want %q", i, s.ChartData[i].Label, want)
		}
	}

	// windows tile backwards from a single anchor with no gaps
	for i := 1; i < len(counter.windows); i++ {
		if !counter.windows[i].End.Equal(counter.windows[i-1].Start) {
			t.Errorf("window %d does not abut window %d", i, i-1)
		}
	}
	if !s.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v", s.GeneratedAt)
	}
}

func TestBuildSummary_Arithmetic(t *testing.T) {
	tests := []struct {
		name    string
		counts  []int64
		total   int64
		average int64
		peak    int64
	}{
		{"round down", []int64{1, 1, 3}, 5, 2, 3},
		{"half to even low", []int64{2, 3}, 5, 2, 3},
		{"half to even high", []int64{3, 4}, 7, 4, 4},
		{"all zero", []int64{0, 0, 0, 0}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &scriptedWindows{counts: counts(tt.counts...)}
			b := NewSummaryBuilder(counter, fixedClock{t: at(12, 0)}, nil)
			s, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, len(tt.counts))
			if err != nil {
				t.Fatal(err)
			}
			if s.Total != tt.total || s.AveragePerHour != tt.average || s.PeakHourly != tt.peak {
				t.Errorf("total=%d avg=%d peak=%d", s.Total, s.AveragePerHour, s.PeakHourly)
			}
		})
	}
}

func TestBuildSummary_ZeroHours(t *testing.T) {
	for _, hours := range []int{0, -3} {
		counter := &scriptedWindows{}
		b := NewSummaryBuilder(counter, fixedClock{t: at(12, 0)}, time.UTC)
		s, err := b.BuildSummary(context.Background(), "acct", models.ScoreResultsUpdated, hours)
		if err != nil {
			t.Fatal(err)
		}
		if s.ChartData == nil || len(s.ChartData) != 0 {
			t.Errorf("hours=%d: expected empty chart, got %v", hours, s.ChartData)
		}
		if s.Total != 0 || s.AveragePerHour != 0 || len(counter.windows) != 0 {
			t.Errorf("hours=%d: expected zero summary without counting", hours)
		}
	}
}

func TestBuildSummary_Partial(t *testing.T) {
	results := counts(1, 2, 3)
	results[1].PagesFailed = 1
	counter := &scriptedWindows{counts: results}
	b := NewSummaryBuilder(counter, fixedClock{t: at(12, 0)}, time.UTC)

	s, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Partial || !s.ChartData[1].Partial || s.ChartData[0].Partial {
		t.Errorf("partial flags wrong: %+v", s.ChartData)
	}
}

func TestBuildSummary_LabelsUseLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	counter := &scriptedWindows{}
	b := NewSummaryBuilder(counter, fixedClock{t: at(15, 0)}, loc)

	s, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, 1)
	if err != nil {
		t.Fatal(err)
	}
	if s.ChartData[0].Label != "10 AM" {
		t.Errorf("label = %q, want 10 AM", s.ChartData[0].Label)
	}
}

func TestBuildSummary_Cancelled(t *testing.T) {
	counter := &scriptedWindows{err: context.Canceled}
	b := NewSummaryBuilder(counter, fixedClock{t: at(12, 0)}, time.UTC)
	if _, err := b.BuildSummary(context.Background(), "acct", models.ItemsCreated, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
