package app

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/services"
)

type summaryCall struct {
	AccountID string
	Selector  models.EntitySelector
	Hours     int
}

type fakeBackend struct {
	active     *models.Account
	summaryErr error
	events     chan services.ServiceEvent
	accounts   []models.Account
	calls      []summaryCall
	mu         sync.Mutex
	partial    bool
}

func newFakeBackend(accounts ...models.Account) *fakeBackend {
	return &fakeBackend{
		accounts: accounts,
		events:   make(chan services.ServiceEvent, 10),
	}
}

func (f *fakeBackend) Accounts() []models.Account { return f.accounts }

func (f *fakeBackend) ActiveAccount() *models.Account { return f.active }

func (f *fakeBackend) Summary(_ context.Context, accountID string, selector models.EntitySelector, hours int) (*models.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, summaryCall{AccountID: accountID, Selector: selector, Hours: hours})
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return testSummary(accountID, selector, hours, f.partial), nil
}

func (f *fakeBackend) CacheStats(context.Context) (*models.CacheStats, error) {
	return &models.CacheStats{Entries: 7, Hits: 3, Misses: 4}, nil
}

func (f *fakeBackend) Subscribe() (chan services.ServiceEvent, tea.Cmd) {
	return f.events, nil
}

func (f *fakeBackend) Calls() []summaryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]summaryCall(nil), f.calls...)
}

func testSummary(accountID string, selector models.EntitySelector, hours int, partial bool) *models.Summary {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	chart := make([]models.BucketResult, hours)
	var total, peak int64
	for i := range chart {
		count := int64(i + 1)
		chart[i] = models.BucketResult{
			BucketStart: start.Add(time.Duration(i) * time.Hour),
			BucketEnd:   start.Add(time.Duration(i+1) * time.Hour),
			Label:       start.Add(time.Duration(i) * time.Hour).Format("03 PM"),
			Count:       count,
		}
		total += count
		peak = max(peak, count)
	}
	var current int64
	if hours > 0 {
		current = chart[hours-1].Count
	}
	return &models.Summary{
		GeneratedAt:      start.Add(time.Duration(hours) * time.Hour),
		AccountID:        accountID,
		ChartData:        chart,
		CurrentHourCount: current,
		AveragePerHour:   total / int64(max(hours, 1)),
		PeakHourly:       peak,
		Total:            total,
		Hours:            hours,
		Selector:         selector,
		Partial:          partial,
	}
}

var (
	acme   = models.Account{ID: "acct-acme", Key: "acme", Name: "Acme"}
	globex = models.Account{ID: "acct-globex", Key: "globex"}
)

// runCmd executes cmd and flattens batches into the resulting messages.
// Only use it on commands that do not block.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, runCmd(c)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func newTestModel(b *fakeBackend) *Model {
	m := NewModel(context.Background(), b, Options{Hours: 6, RefreshInterval: time.Millisecond})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

// loadAccounts feeds the backend accounts into the model and applies the
// resulting summary load.
func loadAccounts(m *Model, b *fakeBackend) {
	_, cmd := m.Update(AccountsLoadedMsg{Accounts: b.Accounts(), Active: b.ActiveAccount()})
	for _, msg := range runCmd(cmd) {
		_, next := m.Update(msg)
		// Follow-up notifications; their expiry timers are not run.
		for _, follow := range runCmd(next) {
			m.Update(follow)
		}
	}
}
