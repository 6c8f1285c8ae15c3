package model

import "time"

// PreferencesID is the fixed id of the preferences singleton.
const PreferencesID = "preferences"

// PeriodMonthToDate is the only dashboard period currently supported.
const PeriodMonthToDate = "month-to-date"

// Preferences is a singleton record, lazily created on first access.
// LastSyncAt is nil until the first successful sync cycle; SyncToken is
// reserved for a future incremental-sync cursor.
type Preferences struct {
	ID               string     `json:"id"`
	Theme            string     `json:"theme"`
	DashboardPeriod  string     `json:"dashboard_period"`
	Currency         string     `json:"currency"`
	CategoriesSeeded bool       `json:"categories_seeded"`
	LastOpenedAt     time.Time  `json:"last_opened_at"`
	LastSyncAt       *time.Time `json:"last_sync_at"`
	SyncToken        *string    `json:"sync_token"`
}

// DefaultPreferences returns the record created on first access.
func DefaultPreferences() Preferences {
	return Preferences{
		ID:              PreferencesID,
		Theme:           "system",
		DashboardPeriod: PeriodMonthToDate,
		Currency:        "USD",
	}
}
