package metrics

import (
	"context"
	"math"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// labelFormat renders the clock hour of a bucket end, e.g. "02 PM".
const labelFormat = "03 PM"

// WindowCounter counts an arbitrary window.
type WindowCounter interface {
	CountWindow(ctx context.Context, accountID string, window models.TimeWindow, selector models.EntitySelector) (models.CountResult, error)
}

// SummaryBuilder assembles trailing hourly summaries.
type SummaryBuilder struct {
	counter  WindowCounter
	clock    Clock
	location *time.Location
}

// NewSummaryBuilder creates a builder. Labels are rendered in loc, UTC when nil.
func NewSummaryBuilder(counter WindowCounter, clock Clock, loc *time.Location) *SummaryBuilder {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryBuilder{counter: counter, clock: clock, location: loc}
}

// BuildSummary counts the trailing hours anchored at a single sample of now.
// The chart is chronological; hours <= 0 yields an empty summary.
func (b *SummaryBuilder) BuildSummary(ctx context.Context, accountID string, selector models.EntitySelector, hours int) (*models.Summary, error) {
	now := b.clock.Now()
	summary := &models.Summary{
		GeneratedAt: now,
		AccountID:   accountID,
		Selector:    selector,
		ChartData:   []models.BucketResult{},
	}
	if hours <= 0 {
		return summary, nil
	}
	summary.Hours = hours

	chart := make([]models.BucketResult, hours)
	for i := 0; i < hours; i++ {
		end := now.Add(-time.Duration(i) * time.Hour)
		start := end.Add(-time.Hour)
		result, err := b.counter.CountWindow(ctx, accountID, models.TimeWindow{Start: start, End: end}, selector)
		if err != nil {
			return nil, err
		}
		// newest first in the loop, stored oldest first
		chart[hours-1-i] = models.BucketResult{
			BucketStart: start,
			BucketEnd:   end,
			Label:       end.In(b.location).Format(labelFormat),
			Count:       result.Count,
			Partial:     result.Partial(),
		}
	}

	for _, point := range chart {
		summary.Total += point.Count
		summary.PeakHourly = max(summary.PeakHourly, point.Count)
		summary.Partial = summary.Partial || point.Partial
	}
	summary.ChartData = chart
	summary.CurrentHourCount = chart[len(chart)-1].Count
	summary.AveragePerHour = int64(math.RoundToEven(float64(summary.Total) / float64(hours)))
	return summary, nil
}
