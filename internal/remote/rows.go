// Package remote wraps the cloud relational store. Rows mirror the
// remote table schemas; conversions to and from local models live here
// so the rest of the core never sees snake_case wire shapes.
package remote

import (
	"time"

	"github.com/ivanoskov/pocketledger/internal/model"
)

// TransactionRow is a row of the remote transactions table.
type TransactionRow struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Type        string     `json:"type"`
	AmountCents int64      `json:"amount_cents"`
	CategoryID  string     `json:"category_id"`
	Timestamp   time.Time  `json:"timestamp"`
	DeletedAt   *time.Time `json:"deleted_at"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CategoryRow is a row of the remote categories table.
type CategoryRow struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Icon      string     `json:"icon"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TransactionToRow converts a local transaction for a push. Tombstones
// carry their updatedAt as the remote deleted_at.
func TransactionToRow(t model.Transaction, userID string) TransactionRow {
	row := TransactionRow{
		ID:          t.ID,
		UserID:      userID,
		Type:        string(t.Type),
		AmountCents: t.AmountCents,
		CategoryID:  t.CategoryID,
		Timestamp:   t.Timestamp.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
	if t.Deleted {
		deletedAt := t.UpdatedAt.UTC()
		row.DeletedAt = &deletedAt
	}
	return row
}

// TransactionFromRow converts a pulled row into the local shape. The
// record arrives already synced; deletion is derived from deleted_at.
func TransactionFromRow(row TransactionRow) model.Transaction {
	return model.Transaction{
		ID:          row.ID,
		Type:        model.TransactionType(row.Type),
		AmountCents: row.AmountCents,
		CategoryID:  row.CategoryID,
		Timestamp:   row.Timestamp,
		UpdatedAt:   row.UpdatedAt,
		SyncStatus:  model.SyncSynced,
		Deleted:     row.DeletedAt != nil,
	}
}

// CategoryToRow converts a local category for a push.
func CategoryToRow(c model.Category, userID string) CategoryRow {
	return CategoryRow{
		ID:        c.ID,
		UserID:    userID,
		Name:      c.Name,
		Icon:      c.Icon,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

// CategoryFromRow converts a pulled row into the local shape. Only user
// categories sync, so UserDefined is forced true; timestamps come from
// the remote record.
func CategoryFromRow(row CategoryRow) model.Category {
	return model.Category{
		ID:          row.ID,
		Name:        row.Name,
		Icon:        row.Icon,
		UserDefined: true,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
