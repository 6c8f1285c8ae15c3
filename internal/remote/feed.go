package remote

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Change is a single remote row-level change event.
type Change struct {
	Table       string
	Transaction *TransactionRow
	Category    *CategoryRow
}

// ChangeFeed delivers remote change events until the returned stop
// function is called or the context is cancelled.
type ChangeFeed interface {
	Subscribe(ctx context.Context, userID string, onChange func(Change)) (stop func(), err error)
}

// PollingFeed implements ChangeFeed by re-issuing the incremental pull
// on a fixed interval. It stands in for the remote store's native
// change-stream, which the client library does not expose.
type PollingFeed struct {
	gateway  Gateway
	interval time.Duration
	log      zerolog.Logger
}

func NewPollingFeed(gateway Gateway, interval time.Duration, log zerolog.Logger) *PollingFeed {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PollingFeed{gateway: gateway, interval: interval, log: log}
}

// Subscribe starts a poll loop. Events observed after the subscription
// moment are delivered in updated_at order; delivery stops when stop is
// called or ctx ends.
func (f *PollingFeed) Subscribe(ctx context.Context, userID string, onChange func(Change)) (func(), error) {
	done := make(chan struct{})
	since := time.Now().UTC()

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				since = f.poll(ctx, userID, since, onChange)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
	}
	return stop, nil
}

// poll fetches rows changed after since and returns the new watermark.
// Errors are logged and the previous watermark kept, so a failed poll is
// retried implicitly on the next tick.
func (f *PollingFeed) poll(ctx context.Context, userID string, since time.Time, onChange func(Change)) time.Time {
	next := since

	txns, err := f.gateway.PullTransactions(ctx, userID, &since)
	if err != nil {
		f.log.Warn().Err(err).Msg("realtime poll: transactions")
		return since
	}
	cats, err := f.gateway.PullCategories(ctx, userID, &since)
	if err != nil {
		f.log.Warn().Err(err).Msg("realtime poll: categories")
		return since
	}

	for i := range cats {
		row := cats[i]
		if row.UpdatedAt.After(next) {
			next = row.UpdatedAt
		}
		onChange(Change{Table: categoriesTable, Category: &row})
	}
	for i := range txns {
		row := txns[i]
		if row.UpdatedAt.After(next) {
			next = row.UpdatedAt
		}
		onChange(Change{Table: transactionsTable, Transaction: &row})
	}
	return next
}
