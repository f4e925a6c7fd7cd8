package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/services"
)

const (
	// DefaultRefreshInterval is the default interval between summary refreshes.
	DefaultRefreshInterval = time.Minute

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// Backend is the data source the dashboard renders.
type Backend interface {
	Accounts() []models.Account
	ActiveAccount() *models.Account
	Summary(ctx context.Context, accountID string, selector models.EntitySelector, hours int) (*models.Summary, error)
	CacheStats(ctx context.Context) (*models.CacheStats, error)
	Subscribe() (chan services.ServiceEvent, tea.Cmd)
}

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// loadAccountsCmd returns a command that loads the tracked accounts.
func loadAccountsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		return AccountsLoadedMsg{
			Accounts: b.Accounts(),
			Active:   b.ActiveAccount(),
		}
	}
}

// loadSummaryCmd returns a command that builds the summary for one account
// and selector.
func loadSummaryCmd(ctx context.Context, b Backend, accountID string, selector models.EntitySelector, hours int) tea.Cmd {
	return func() tea.Msg {
		summary, err := b.Summary(ctx, accountID, selector, hours)
		return SummaryLoadedMsg{
			AccountID: accountID,
			Selector:  selector,
			Summary:   summary,
			Err:       err,
		}
	}
}

// loadCacheStatsCmd returns a command that reads cache statistics.
func loadCacheStatsCmd(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		stats, err := b.CacheStats(ctx)
		return CacheStatsMsg{Stats: stats, Err: err}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(b Backend) tea.Cmd {
	ch, _ := b.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}
