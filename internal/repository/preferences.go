package repository

import (
	"time"

	"github.com/ivanoskov/pocketledger/internal/localstore"
	"github.com/ivanoskov/pocketledger/internal/model"
)

// PreferencesRepo manages the preferences singleton. Get lazily creates
// the record on first access.
type PreferencesRepo struct {
	store *localstore.Store
}

func NewPreferencesRepo(store *localstore.Store) *PreferencesRepo {
	return &PreferencesRepo{store: store}
}

// Get returns the singleton, creating it with defaults when absent.
func (r *PreferencesRepo) Get() (model.Preferences, error) {
	var p model.Preferences
	ok, err := r.store.Get(preferencesCollection, model.PreferencesID, &p)
	if err != nil {
		return model.Preferences{}, err
	}
	if ok {
		return p, nil
	}
	p = model.DefaultPreferences()
	err = r.store.Update(func(tx *localstore.Tx) error {
		// another lazy Get may have won the race to create it
		var existing model.Preferences
		ok, err := tx.Get(preferencesCollection, model.PreferencesID, &existing)
		if err != nil {
			return err
		}
		if ok {
			p = existing
			return nil
		}
		return tx.Put(preferencesCollection, model.PreferencesID, p)
	})
	return p, err
}

// Mutate applies fn to the singleton inside one write transaction.
func (r *PreferencesRepo) Mutate(fn func(p *model.Preferences)) error {
	if _, err := r.Get(); err != nil {
		return err
	}
	return r.store.Update(func(tx *localstore.Tx) error {
		var p model.Preferences
		ok, err := tx.Get(preferencesCollection, model.PreferencesID, &p)
		if err != nil {
			return err
		}
		if !ok {
			p = model.DefaultPreferences()
		}
		fn(&p)
		p.ID = model.PreferencesID
		return tx.Put(preferencesCollection, model.PreferencesID, p)
	})
}

// SetTheme records the user's theme choice.
func (r *PreferencesRepo) SetTheme(theme string) error {
	return r.Mutate(func(p *model.Preferences) { p.Theme = theme })
}

// SetCurrency records the display currency.
func (r *PreferencesRepo) SetCurrency(currency string) error {
	return r.Mutate(func(p *model.Preferences) { p.Currency = currency })
}

// TouchOpened records an app foreground.
func (r *PreferencesRepo) TouchOpened() error {
	return r.Mutate(func(p *model.Preferences) { p.LastOpenedAt = time.Now().UTC() })
}

// SetLastSync records the start time of the last successful sync cycle.
func (r *PreferencesRepo) SetLastSync(t time.Time) error {
	return r.Mutate(func(p *model.Preferences) { p.LastSyncAt = &t })
}
