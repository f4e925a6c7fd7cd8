package app

import (
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/services"
)

// TickMsg is sent periodically to trigger a summary refresh.
type TickMsg struct {
	Time time.Time
}

// AccountsLoadedMsg contains the tracked accounts.
type AccountsLoadedMsg struct {
	Active   *models.Account
	Accounts []models.Account
}

// SummaryLoadedMsg contains a freshly built summary or the error that
// prevented it.
type SummaryLoadedMsg struct {
	Summary   *models.Summary
	Err       error
	AccountID string
	Selector  models.EntitySelector
}

// CacheStatsMsg contains the current cache statistics.
type CacheStatsMsg struct {
	Stats *models.CacheStats
	Err   error
}

// SubscriptionEventMsg carries the channel returned by the backend subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ServiceEventMsg wraps a service event for the Bubble Tea update loop.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// AddNotificationMsg adds a toast notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg removes a notification by ID.
type RemoveNotificationMsg struct {
	ID string
}
