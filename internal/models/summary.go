package models

import "time"

// BucketResult is one hourly point of a summary chart.
type BucketResult struct {
	BucketStart time.Time `json:"bucketStart"`
	BucketEnd   time.Time `json:"bucketEnd"`
	Label       string    `json:"time"`
	Count       int64     `json:"count"`
	Partial     bool      `json:"partial,omitempty"`
}

// Summary is the dashboard view of the trailing hours for one account and selector.
// ChartData is chronological, oldest first.
type Summary struct {
	GeneratedAt      time.Time      `json:"generatedAt"`
	AccountID        string         `json:"accountId"`
	ChartData        []BucketResult `json:"chartData"`
	CurrentHourCount int64          `json:"currentHourCount"`
	AveragePerHour   int64          `json:"averagePerHour"`
	PeakHourly       int64          `json:"peakHourly"`
	Total            int64          `json:"total"`
	Hours            int            `json:"hours"`
	Selector         EntitySelector `json:"entity"`
	Partial          bool           `json:"partial"`
}

// HasData reports whether the summary contains any chart points.
func (s *Summary) HasData() bool {
	return s != nil && len(s.ChartData) > 0
}

// Counts returns the chart counts as float64 values, oldest first.
func (s *Summary) Counts() []float64 {
	if s == nil {
		return nil
	}
	values := make([]float64, len(s.ChartData))
	for i, b := range s.ChartData {
		values[i] = float64(b.Count)
	}
	return values
}
