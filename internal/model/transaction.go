package model

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType distinguishes money in from money out. The sign of an
// amount is carried here, never in AmountCents.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// SyncStatus tracks whether a record's latest local write has completed a
// confirmed remote round-trip.
type SyncStatus string

const (
	SyncLocal  SyncStatus = "local"
	SyncSynced SyncStatus = "synced"
)

// Transaction is the canonical local copy of a single expense or income
// event. Amounts are integer minor currency units (cents), always >= 1.
// Deleted marks a tombstone: the record is hidden from all views but kept
// in storage until the maintenance job purges it.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	AmountCents int64           `json:"amount_cents"`
	CategoryID  string          `json:"category_id"`
	Timestamp   time.Time       `json:"timestamp"`
	UpdatedAt   time.Time       `json:"updated_at"`
	SyncStatus  SyncStatus      `json:"sync_status"`
	Deleted     bool            `json:"deleted"`
}

// GenerateID assigns a new UUID if the transaction does not have one yet.
func (t *Transaction) GenerateID() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
}
