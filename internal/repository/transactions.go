// Package repository is the CRUD façade over the local store, one repo
// per entity type. It owns id generation, updatedAt bookkeeping and
// soft-delete semantics; callers never touch store collections directly.
package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ivanoskov/pocketledger/internal/localstore"
	"github.com/ivanoskov/pocketledger/internal/model"
)

const (
	transactionsCollection = "transactions"
	categoriesCollection   = "categories"
	preferencesCollection  = "preferences"
)

// TransactionRepo persists transactions in the local store.
type TransactionRepo struct {
	store *localstore.Store
}

func NewTransactionRepo(store *localstore.Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Upsert writes t atomically, generating an id when absent. SyncStatus
// defaults to "local"; only the sync engine's pull path passes "synced",
// in which case the remote updatedAt is preserved instead of bumped.
func (r *TransactionRepo) Upsert(t model.Transaction) (string, error) {
	t.GenerateID()
	if t.SyncStatus == "" {
		t.SyncStatus = model.SyncLocal
	}
	if t.SyncStatus != model.SyncSynced || t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	err := r.store.Update(func(tx *localstore.Tx) error {
		return tx.Put(transactionsCollection, t.ID, t)
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// SoftDelete tombstones the record. Returns false when id is unknown.
func (r *TransactionRepo) SoftDelete(id string) (bool, error) {
	found := false
	err := r.store.Update(func(tx *localstore.Tx) error {
		var t model.Transaction
		ok, err := tx.Get(transactionsCollection, id, &t)
		if err != nil || !ok {
			return err
		}
		found = true
		t.Deleted = true
		t.UpdatedAt = time.Now().UTC()
		t.SyncStatus = model.SyncLocal
		return tx.Put(transactionsCollection, id, t)
	})
	return found, err
}

// Purge permanently removes the record. Returns false when id is unknown.
func (r *TransactionRepo) Purge(id string) (bool, error) {
	found := false
	err := r.store.Update(func(tx *localstore.Tx) error {
		var t model.Transaction
		ok, err := tx.Get(transactionsCollection, id, &t)
		if err != nil || !ok {
			return err
		}
		found = true
		tx.Delete(transactionsCollection, id)
		return nil
	})
	return found, err
}

// PurgeBatch removes every listed id inside one store transaction and
// returns how many actually existed.
func (r *TransactionRepo) PurgeBatch(ids []string) (int, error) {
	purged := 0
	err := r.store.Update(func(tx *localstore.Tx) error {
		for _, id := range ids {
			var t model.Transaction
			ok, err := tx.Get(transactionsCollection, id, &t)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			tx.Delete(transactionsCollection, id)
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// MarkSynced flips the record to "synced" without bumping updatedAt.
// The asOf guard skips records edited since the caller snapshotted them,
// so an edit racing a push keeps its "local" status.
func (r *TransactionRepo) MarkSynced(id string, asOf time.Time) (bool, error) {
	marked := false
	err := r.store.Update(func(tx *localstore.Tx) error {
		var t model.Transaction
		ok, err := tx.Get(transactionsCollection, id, &t)
		if err != nil || !ok {
			return err
		}
		if !t.UpdatedAt.Equal(asOf) {
			return nil
		}
		marked = true
		t.SyncStatus = model.SyncSynced
		return tx.Put(transactionsCollection, id, t)
	})
	return marked, err
}

// ByID resolves a transaction regardless of its deleted flag.
func (r *TransactionRepo) ByID(id string) (*model.Transaction, error) {
	var t model.Transaction
	ok, err := r.store.Get(transactionsCollection, id, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// Active returns non-deleted transactions ordered by timestamp
// descending.
func (r *TransactionRepo) Active() ([]model.Transaction, error) {
	all, err := r.AllIncludingDeleted()
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, t := range all {
		if !t.Deleted {
			active = append(active, t)
		}
	}
	return active, nil
}

// AllIncludingDeleted returns every stored transaction, tombstones
// included, ordered by timestamp descending.
func (r *TransactionRepo) AllIncludingDeleted() ([]model.Transaction, error) {
	snap := r.store.Snapshot(transactionsCollection)
	out := make([]model.Transaction, 0, len(snap))
	for id, raw := range snap {
		var t model.Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", id, err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// CountByCategory returns how many non-deleted transactions reference
// the category.
func (r *TransactionRepo) CountByCategory(categoryID string) (int, error) {
	active, err := r.Active()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range active {
		if t.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// WatchActive registers fn to run after every committed write touching
// transactions.
func (r *TransactionRepo) WatchActive(fn func()) (cancel func()) {
	return r.store.Watch(transactionsCollection, fn)
}
