// Package services composes the metrics subsystem and routes its events.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/plexus-ai/plexus-metrics/internal/config"
	"github.com/plexus-ai/plexus-metrics/internal/db"
	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/services/accounts"
	"github.com/plexus-ai/plexus-metrics/internal/services/counter"
	"github.com/plexus-ai/plexus-metrics/internal/services/metrics"
)

// ErrNoAccount is returned when no account was given and none is configured.
var ErrNoAccount = errors.New("no account selected: pass an account or set PLEXUS_ACCOUNT_KEY")

type (
	// AccountsChangedEvent is emitted when the accounts list changes.
	AccountsChangedEvent struct {
		ActiveAccount *models.Account
		Accounts      []models.Account
	}

	// SummaryUpdatedEvent is emitted after a summary is rebuilt.
	SummaryUpdatedEvent struct {
		Summary *models.Summary
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (AccountsChangedEvent) isServiceEvent() {}
func (SummaryUpdatedEvent) isServiceEvent()  {}
func (ErrorEvent) isServiceEvent()           {}

// Notifier shows a desktop notification.
type Notifier func(title, message string) error

func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for summaries and bucket expiry.
func WithClock(clock metrics.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithNotifier replaces the desktop notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notify = n }
}

// Manager owns the cache, remote client and accounts for one process.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	clock       metrics.Clock
	notify      Notifier
	accounts    *accounts.Registry
	database    *db.DB
	client      *counter.Client
	counter     *counter.Counter
	cache       *metrics.WindowedCountCache
	summaries   *metrics.SummaryBuilder
	stopChan    chan struct{}
	subscribers []chan ServiceEvent
	partial     map[string]bool
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closeErr    error
}

// NewManager opens the cache and accounts file and wires the counting stack.
// The caller must Close the manager.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		clock:    metrics.SystemClock(),
		notify:   desktopNotify,
		stopChan: make(chan struct{}),
		partial:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.client, err = counter.NewClient(cfg.APIURL, cfg.APIKey, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	m.counter = counter.New(m.client, counter.Options{PageSize: cfg.PageSize, MaxPages: cfg.MaxPages})

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = config.DefaultCachePath()
	}
	m.database, err = db.New(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	m.cache, err = metrics.NewWindowedCountCache(m.counter, m.database, metrics.CacheOptions{
		Clock:        m.clock,
		WidthMinutes: cfg.BucketWidthMinutes,
		Concurrency:  cfg.FetchConcurrency,
	})
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}
	m.summaries = metrics.NewSummaryBuilder(m.cache, m.clock, cfg.Location)

	m.accounts, err = accounts.Open(cfg.AccountsPath)
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}

	m.wg.Add(1)
	go m.routeEvents()

	return m, nil
}

// routeEvents forwards account service events to subscribers.
func (m *Manager) routeEvents() {
	defer m.wg.Done()
	for {
		select {
		case event := <-m.accounts.Events():
			m.handleAccountEvent(event)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleAccountEvent(event accounts.Event) {
	switch event.Kind {
	case accounts.Failed:
		m.broadcast(ErrorEvent{Service: "accounts", Error: event.Err})
	default:
		m.broadcast(AccountsChangedEvent{
			Accounts:      m.accounts.List(),
			ActiveAccount: m.accounts.Active(),
		})
	}
}

// Summary builds the trailing-hours summary for an account and publishes it.
func (m *Manager) Summary(ctx context.Context, accountID string, selector models.EntitySelector, hours int) (*models.Summary, error) {
	summary, err := m.summaries.BuildSummary(ctx, accountID, selector, hours)
	if err != nil {
		return nil, err
	}
	if summary.Partial {
		logger.Warn("summary built from partial counts",
			"account", accountID, "entity", selector.String(), "hours", hours)
	}
	m.checkNotifications(summary)
	m.broadcast(SummaryUpdatedEvent{Summary: summary})
	return summary, nil
}

// Count returns the count for an arbitrary window through the bucket cache.
func (m *Manager) Count(ctx context.Context, accountID string, window models.TimeWindow, selector models.EntitySelector) (models.CountResult, error) {
	return m.cache.CountWindow(ctx, accountID, window, selector)
}

// ResolveAccount finds a tracked account by ID or key, then asks the
// remote API to resolve the value as an account key.
func (m *Manager) ResolveAccount(ctx context.Context, idOrKey string) (*models.Account, error) {
	if acc, err := m.accounts.Lookup(idOrKey); err == nil {
		return acc, nil
	}
	return counter.ResolveAccountID(ctx, m.client, idOrKey)
}

// DefaultAccount picks the configured account key, then the active tracked account.
func (m *Manager) DefaultAccount(ctx context.Context) (*models.Account, error) {
	if m.cfg.AccountKey != "" {
		return m.ResolveAccount(ctx, m.cfg.AccountKey)
	}
	if acc := m.accounts.Active(); acc != nil {
		return acc, nil
	}
	return nil, ErrNoAccount
}

// Accounts returns the tracked accounts.
func (m *Manager) Accounts() []models.Account {
	return m.accounts.List()
}

// ActiveAccount returns the active tracked account, if any.
func (m *Manager) ActiveAccount() *models.Account {
	return m.accounts.Active()
}

// AddAccount tracks an account. A key without an ID is resolved remotely.
func (m *Manager) AddAccount(ctx context.Context, acc models.Account) (*models.Account, error) {
	if acc.ID == "" {
		if acc.Key == "" {
			return nil, errors.New("account id or key is required")
		}
		resolved, err := counter.ResolveAccountID(ctx, m.client, acc.Key)
		if err != nil {
			return nil, err
		}
		acc.ID = resolved.ID
		if acc.Name == "" {
			acc.Name = resolved.Name
		}
	}
	if err := m.accounts.Add(acc); err != nil {
		return nil, err
	}
	return m.accounts.Lookup(acc.ID)
}

// RemoveAccount stops tracking an account.
func (m *Manager) RemoveAccount(idOrKey string) error {
	return m.accounts.Remove(idOrKey)
}

// SetActiveAccount selects the account used when none is given.
func (m *Manager) SetActiveAccount(idOrKey string) error {
	return m.accounts.Use(idOrKey)
}

// CacheStats reports stored entries and this process's hit/miss counters.
func (m *Manager) CacheStats(ctx context.Context) (*models.CacheStats, error) {
	stats, err := m.database.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counters := m.cache.Stats()
	stats.Hits = counters.Hits
	stats.Misses = counters.Misses
	return stats, nil
}

// PruneCache removes entries written more than olderThan ago.
func (m *Manager) PruneCache(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune age must be positive, got %s", olderThan)
	}
	n, err := m.database.Prune(ctx, m.clock.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	logger.Info("pruned metrics cache", "removed", n, "olderThan", olderThan.String())
	return n, nil
}

// ClearCache removes every cached bucket.
func (m *Manager) ClearCache(ctx context.Context) (int64, error) {
	n, err := m.database.Clear(ctx)
	if err != nil {
		return 0, err
	}
	if err := m.database.Vacuum(); err != nil {
		logger.Warn("failed to vacuum cache", "error", err)
	}
	logger.Info("cleared metrics cache", "removed", n)
	return n, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// StartRefresh rebuilds summaries for every tracked account and selector
// immediately and then on each interval until ctx ends or the manager closes.
func (m *Manager) StartRefresh(ctx context.Context, interval time.Duration, hours int) {
	if interval <= 0 {
		interval = m.cfg.RefreshInterval
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.RefreshAll(ctx, hours)
		for {
			select {
			case <-ticker.C:
				m.RefreshAll(ctx, hours)
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			}
		}
	}()
}

// RefreshAll rebuilds summaries for every tracked account and selector.
func (m *Manager) RefreshAll(ctx context.Context, hours int) {
	for _, acc := range m.accounts.List() {
		for _, selector := range models.AllSelectors() {
			if ctx.Err() != nil {
				return
			}
			if _, err := m.Summary(ctx, acc.ID, selector, hours); err != nil {
				logger.Error("summary refresh failed",
					"account", acc.ID, "entity", selector.String(), "error", err)
				m.broadcast(ErrorEvent{Service: "metrics", Error: err})
			}
		}
	}
}

// checkNotifications alerts when a summary turns partial or recovers.
func (m *Manager) checkNotifications(s *models.Summary) {
	key := s.AccountID + "|" + s.Selector.String()

	m.mu.Lock()
	previous, seen := m.partial[key]
	m.partial[key] = s.Partial
	m.mu.Unlock()

	if !seen || previous == s.Partial || !m.cfg.Notify || m.notify == nil {
		return
	}

	var title, body string
	if s.Partial {
		title = fmt.Sprintf("Partial data: %s", s.AccountID)
		body = fmt.Sprintf("%s counts may be low; some pages failed to load.", s.Selector.DisplayName())
	} else {
		title = fmt.Sprintf("Data recovered: %s", s.AccountID)
		body = fmt.Sprintf("%s counts are complete again.", s.Selector.DisplayName())
	}
	if err := m.notify(title, body); err != nil {
		logger.Debug("desktop notification failed", "error", err)
	}
}

// broadcast sends an event to all subscribers without blocking.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
// It yields nil once the channel is closed.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ev
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close stops background work and releases the cache and accounts watcher.
// Calling it more than once returns the first result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		var errs []error
		if err := m.accounts.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
