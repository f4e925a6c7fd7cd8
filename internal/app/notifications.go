package app

import (
	"slices"
	"strconv"
	"time"
)

// NotificationType selects the toast's color.
type NotificationType int

const (
	NotificationSuccess NotificationType = iota
	NotificationError
	NotificationWarning
	NotificationInfo
)

// maxNotifications caps the toast backlog.
const maxNotifications = 10

func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Notification is a toast shown under the dashboard. A zero Duration
// never expires.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Duration  time.Duration
	Type      NotificationType
}

// IsExpired reports whether the toast has outlived its Duration.
func (n *Notification) IsExpired() bool {
	return n.expiredAt(time.Now())
}

func (n *Notification) expiredAt(now time.Time) bool {
	return n.Duration > 0 && now.Sub(n.CreatedAt) > n.Duration
}

// toastQueue is a bounded FIFO of notifications. It is not safe for
// concurrent use; AppState guards it.
type toastQueue struct {
	items []Notification
	seq   int
	limit int
}

func (q *toastQueue) push(kind NotificationType, msg string, ttl time.Duration, now time.Time) string {
	q.seq++
	id := "n" + strconv.Itoa(q.seq)
	q.items = append(q.items, Notification{
		ID:        id,
		Type:      kind,
		Message:   msg,
		CreatedAt: now,
		Duration:  ttl,
	})
	if q.limit > 0 && len(q.items) > q.limit {
		q.items = slices.Clone(q.items[len(q.items)-q.limit:])
	}
	return id
}

func (q *toastQueue) remove(id string) {
	q.items = slices.DeleteFunc(q.items, func(n Notification) bool { return n.ID == id })
}

func (q *toastQueue) prune(now time.Time) {
	q.items = slices.DeleteFunc(q.items, func(n Notification) bool { return n.expiredAt(now) })
}

func (q *toastQueue) live(now time.Time) []Notification {
	out := make([]Notification, 0, len(q.items))
	for _, n := range q.items {
		if !n.expiredAt(now) {
			out = append(out, n)
		}
	}
	return out
}
