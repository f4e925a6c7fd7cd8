// Package app provides the dashboard Bubble Tea model and its state.
package app

import (
	"slices"
	"sync"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// AppState holds the data shown by the dashboard.
type AppState struct {
	mu sync.RWMutex

	Accounts             []models.Account
	SelectedAccountIndex int

	LastUpdated time.Time
	CacheStats  *models.CacheStats
	summaries   map[summaryKey]*models.Summary
	loading     map[string]bool

	toasts toastQueue
}

// NewAppState creates an empty state.
func NewAppState() *AppState {
	return &AppState{
		Accounts:  []models.Account{},
		summaries: make(map[summaryKey]*models.Summary),
		loading:   make(map[string]bool),
		toasts:    toastQueue{limit: maxNotifications},
	}
}

type summaryKey struct {
	account  string
	selector models.EntitySelector
}

// String is the key's loading-state name.
func (k summaryKey) String() string {
	return "summary:" + k.account + ":" + k.selector.String()
}

// SetAccounts replaces the account list. The selection follows the active
// account when one is given, and is clamped to the list otherwise.
func (s *AppState) SetAccounts(accounts []models.Account, active *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Accounts = accounts
	if active != nil {
		if i := slices.IndexFunc(accounts, func(a models.Account) bool { return a.ID == active.ID }); i >= 0 {
			s.SelectedAccountIndex = i
			return
		}
	}
	s.SelectedAccountIndex = min(s.SelectedAccountIndex, max(len(accounts)-1, 0))
}

// GetAccounts returns a copy of the accounts list.
func (s *AppState) GetAccounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.Accounts)
}

// GetAccountCount returns the number of accounts.
func (s *AppState) GetAccountCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Accounts)
}

// SelectedAccount returns the selected account, or nil when none are tracked.
func (s *AppState) SelectedAccount() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.SelectedAccountIndex
	if i < 0 || i >= len(s.Accounts) {
		return nil
	}
	acc := s.Accounts[i]
	return &acc
}

// MoveSelection shifts the selected account by delta, wrapping around.
// It reports whether the selection changed.
func (s *AppState) MoveSelection(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.Accounts)
	if n < 2 {
		return false
	}
	s.SelectedAccountIndex = ((s.SelectedAccountIndex+delta)%n + n) % n
	return true
}

// SetSummary stores a summary under its account and selector.
func (s *AppState) SetSummary(summary *models.Summary) {
	if summary == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summaryKey{summary.AccountID, summary.Selector}] = summary
	s.LastUpdated = summary.GeneratedAt
}

// GetSummary returns the last summary for an account and selector.
func (s *AppState) GetSummary(accountID string, selector models.EntitySelector) *models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries[summaryKey{accountID, selector}]
}

// SetCacheStats updates the cache statistics.
func (s *AppState) SetCacheStats(stats *models.CacheStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheStats = stats
}

// GetCacheStats returns the cache statistics.
func (s *AppState) GetCacheStats() *models.CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CacheStats
}

// SetLoading sets the loading state for a resource.
func (s *AppState) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loading {
		s.loading[resource] = true
		return
	}
	delete(s.loading, resource)
}

// IsLoading reports whether a resource is loading.
func (s *AppState) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[resource]
}

// AnyLoading returns true if any resource is currently loading.
func (s *AppState) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.loading) > 0
}

// LoadingCount returns the number of resources loading.
func (s *AppState) LoadingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.loading)
}

// GetLastUpdated returns when the last summary was generated.
func (s *AppState) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// AddNotification queues a toast and returns its ID.
func (s *AppState) AddNotification(kind NotificationType, message string, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toasts.push(kind, message, ttl, time.Now())
}

// RemoveNotification drops a toast by ID.
func (s *AppState) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts.remove(id)
}

// ClearExpiredNotifications drops every toast past its TTL.
func (s *AppState) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts.prune(time.Now())
}

// GetNotifications returns the toasts that have not expired, oldest first.
func (s *AppState) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toasts.live(time.Now())
}
