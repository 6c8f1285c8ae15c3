package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ivanoskov/pocketledger/internal/localstore"
	"github.com/ivanoskov/pocketledger/internal/model"
)

// ErrCategoryInUse is returned when a category with referencing
// transactions is deleted without a replacement. The original app left
// the foreign keys silently orphaned; here that is a hard error.
var ErrCategoryInUse = errors.New("category has referencing transactions and no replacement was given")

// CategoryRepo persists categories in the local store.
type CategoryRepo struct {
	store *localstore.Store
}

func NewCategoryRepo(store *localstore.Store) *CategoryRepo {
	return &CategoryRepo{store: store}
}

// Upsert writes c atomically, generating an id when absent. CreatedAt is
// preserved from an existing record with the same id (update-in-place);
// an explicitly provided CreatedAt survives for the sync pull path.
func (r *CategoryRepo) Upsert(c model.Category) (string, error) {
	c.GenerateID()
	err := r.store.Update(func(tx *localstore.Tx) error {
		var existing model.Category
		ok, err := tx.Get(categoriesCollection, c.ID, &existing)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if ok {
			c.CreatedAt = existing.CreatedAt
		} else if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		return tx.Put(categoriesCollection, c.ID, c)
	})
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// ByID resolves a category.
func (r *CategoryRepo) ByID(id string) (*model.Category, error) {
	var c model.Category
	ok, err := r.store.Get(categoriesCollection, id, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// All returns every category ordered by name ascending.
func (r *CategoryRepo) All() ([]model.Category, error) {
	snap := r.store.Snapshot(categoriesCollection)
	out := make([]model.Category, 0, len(snap))
	for id, raw := range snap {
		var c model.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode category %s: %w", id, err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// UserDefined returns only user-created categories, name ascending.
func (r *CategoryRepo) UserDefined() ([]model.Category, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	user := all[:0]
	for _, c := range all {
		if c.UserDefined {
			user = append(user, c)
		}
	}
	return user, nil
}

// Delete removes the category. When replacementID is non-empty, every
// transaction referencing id is reassigned to it in the same store
// transaction, with updatedAt bumped and syncStatus reset so the change
// propagates on the next push. With referencing transactions and no
// replacement the call fails with ErrCategoryInUse. Returns false when
// the category does not exist.
func (r *CategoryRepo) Delete(id, replacementID string) (bool, error) {
	found := false
	err := r.store.Update(func(tx *localstore.Tx) error {
		var c model.Category
		ok, err := tx.Get(categoriesCollection, id, &c)
		if err != nil || !ok {
			return err
		}
		found = true

		if replacementID != "" {
			var replacement model.Category
			ok, err := tx.Get(categoriesCollection, replacementID, &replacement)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("replacement category %s does not exist", replacementID)
			}
		}

		now := time.Now().UTC()
		for _, txnID := range tx.IDs(transactionsCollection) {
			var t model.Transaction
			ok, err := tx.Get(transactionsCollection, txnID, &t)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if t.CategoryID != id {
				continue
			}
			if replacementID == "" {
				if t.Deleted {
					continue
				}
				return ErrCategoryInUse
			}
			t.CategoryID = replacementID
			t.UpdatedAt = now
			t.SyncStatus = model.SyncLocal
			if err := tx.Put(transactionsCollection, txnID, t); err != nil {
				return err
			}
		}

		tx.Delete(categoriesCollection, id)
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Watch registers fn to run after every committed write touching
// categories.
func (r *CategoryRepo) Watch(fn func()) (cancel func()) {
	return r.store.Watch(categoriesCollection, fn)
}
