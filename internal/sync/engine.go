// Package sync reconciles the local store with the remote one. A cycle
// runs four strictly sequential phases: pull categories, pull
// transactions, push categories, push transactions. Pulls precede
// pushes so a device never overwrites a newer remote edit it has not
// observed. Conflict resolution is last-write-wins by wall-clock
// updated_at via the remote upsert; concurrent edits on two devices
// inside one sync window are not merged field by field.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/pocketledger/internal/model"
	"github.com/ivanoskov/pocketledger/internal/remote"
	"github.com/ivanoskov/pocketledger/internal/repository"
)

// ErrNotAuthenticated gates every cycle: without a user id there is
// nothing to pull or push against.
var ErrNotAuthenticated = errors.New("no authenticated user")

// Session exposes the authentication boundary. The engine only reads
// the user id; it never performs authentication itself.
type Session interface {
	UserID() (string, bool)
}

// StaticSession is a Session with a fixed user id, as handed over by
// the app shell after sign-in.
type StaticSession struct {
	ID string
}

func (s StaticSession) UserID() (string, bool) {
	return s.ID, s.ID != ""
}

// Result is the outcome of one cycle. The engine never panics or
// returns errors across its public boundary any other way.
type Result struct {
	Success            bool
	Err                error
	PulledCategories   int
	PulledTransactions int
	PushedCategories   int
	PushedTransactions int
}

// Engine orchestrates sync cycles and the realtime listener.
type Engine struct {
	transactions *repository.TransactionRepo
	categories   *repository.CategoryRepo
	preferences  *repository.PreferencesRepo
	gateway      remote.Gateway
	feed         remote.ChangeFeed
	session      Session
	log          zerolog.Logger
}

func New(
	transactions *repository.TransactionRepo,
	categories *repository.CategoryRepo,
	preferences *repository.PreferencesRepo,
	gateway remote.Gateway,
	feed remote.ChangeFeed,
	session Session,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		transactions: transactions,
		categories:   categories,
		preferences:  preferences,
		gateway:      gateway,
		feed:         feed,
		session:      session,
		log:          log,
	}
}

// SyncAll runs one full cycle. Any phase failure aborts the remaining
// phases; completed phases are not rolled back, and the caller decides
// whether to retry the whole cycle.
func (e *Engine) SyncAll(ctx context.Context) Result {
	userID, ok := e.session.UserID()
	if !ok {
		return Result{Err: ErrNotAuthenticated}
	}

	startedAt := time.Now().UTC()
	var res Result

	prefs, err := e.preferences.Get()
	if err != nil {
		res.Err = fmt.Errorf("read preferences: %w", err)
		return res
	}

	n, err := e.pullCategories(ctx, userID)
	if err != nil {
		res.Err = err
		return res
	}
	res.PulledCategories = n

	n, err = e.pullTransactions(ctx, userID, prefs.LastSyncAt)
	if err != nil {
		res.Err = err
		return res
	}
	res.PulledTransactions = n

	n, err = e.pushCategories(ctx, userID)
	if err != nil {
		res.Err = err
		return res
	}
	res.PushedCategories = n

	n, err = e.pushTransactions(ctx, userID)
	if err != nil {
		res.Err = err
		return res
	}
	res.PushedTransactions = n

	if err := e.preferences.SetLastSync(startedAt); err != nil {
		res.Err = fmt.Errorf("record sync time: %w", err)
		return res
	}

	res.Success = true
	e.log.Info().
		Int("pulled_categories", res.PulledCategories).
		Int("pulled_transactions", res.PulledTransactions).
		Int("pushed_categories", res.PushedCategories).
		Int("pushed_transactions", res.PushedTransactions).
		Msg("sync cycle complete")
	return res
}

// pullCategories is always a full pull; categories are low-volume.
func (e *Engine) pullCategories(ctx context.Context, userID string) (int, error) {
	rows, err := e.gateway.PullCategories(ctx, userID, nil)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if _, err := e.categories.Upsert(remote.CategoryFromRow(row)); err != nil {
			return 0, fmt.Errorf("apply category %s: %w", row.ID, err)
		}
	}
	return len(rows), nil
}

// pullTransactions is incremental after the first successful cycle.
func (e *Engine) pullTransactions(ctx context.Context, userID string, since *time.Time) (int, error) {
	rows, err := e.gateway.PullTransactions(ctx, userID, since)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := e.applyRemoteTransaction(row); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func (e *Engine) applyRemoteTransaction(row remote.TransactionRow) error {
	if _, err := e.transactions.Upsert(remote.TransactionFromRow(row)); err != nil {
		return fmt.Errorf("apply transaction %s: %w", row.ID, err)
	}
	return nil
}

// pushCategories upserts every locally user-defined category. Seeded
// defaults stay on the device.
func (e *Engine) pushCategories(ctx context.Context, userID string) (int, error) {
	cats, err := e.categories.UserDefined()
	if err != nil {
		return 0, err
	}
	rows := make([]remote.CategoryRow, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, remote.CategoryToRow(c, userID))
	}
	if err := e.gateway.PushCategories(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// pushTransactions upserts every local transaction, tombstones included,
// then marks the pushed records synced. The asOf guard keeps records
// edited mid-push in "local" status.
func (e *Engine) pushTransactions(ctx context.Context, userID string) (int, error) {
	all, err := e.transactions.AllIncludingDeleted()
	if err != nil {
		return 0, err
	}
	rows := make([]remote.TransactionRow, 0, len(all))
	for _, t := range all {
		rows = append(rows, remote.TransactionToRow(t, userID))
	}
	if err := e.gateway.PushTransactions(ctx, rows); err != nil {
		return 0, err
	}
	for _, t := range all {
		if t.SyncStatus == model.SyncSynced {
			continue
		}
		if _, err := e.transactions.MarkSynced(t.ID, t.UpdatedAt); err != nil {
			return 0, fmt.Errorf("mark synced %s: %w", t.ID, err)
		}
	}
	return len(rows), nil
}

// StartRealtime subscribes to the remote change feed and applies each
// event through the same upsert path as pull. Call it after a
// successful initial sync; the returned stop function tears the
// subscription down on logout or shutdown.
func (e *Engine) StartRealtime(ctx context.Context) (func(), error) {
	userID, ok := e.session.UserID()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if e.feed == nil {
		return nil, errors.New("no change feed configured")
	}
	return e.feed.Subscribe(ctx, userID, func(change remote.Change) {
		// events arriving after logout are dropped
		if _, ok := e.session.UserID(); !ok {
			return
		}
		e.applyChange(change)
	})
}

func (e *Engine) applyChange(change remote.Change) {
	switch {
	case change.Transaction != nil:
		if err := e.applyRemoteTransaction(*change.Transaction); err != nil {
			e.log.Warn().Err(err).Msg("realtime apply: transaction")
		}
	case change.Category != nil:
		if change.Category.DeletedAt != nil {
			return
		}
		if _, err := e.categories.Upsert(remote.CategoryFromRow(*change.Category)); err != nil {
			e.log.Warn().Err(err).Msg("realtime apply: category")
		}
	}
}
