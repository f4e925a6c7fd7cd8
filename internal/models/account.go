package models

import "time"

// Account is a Plexus account tracked by the dashboard.
type Account struct {
	AddedAt time.Time `json:"addedAt"`
	ID      string    `json:"id"`
	Key     string    `json:"key,omitempty"`
	Name    string    `json:"name,omitempty"`
}

// DisplayName returns the best available label for the account.
func (a *Account) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Key != "":
		return a.Key
	default:
		return a.ID
	}
}
