// Package maintenance permanently removes tombstones that have already
// propagated. A record is eligible only when it is soft-deleted, has
// completed a confirmed sync, and is older than the retention window.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/pocketledger/internal/model"
	"github.com/ivanoskov/pocketledger/internal/repository"
)

// Options is the purge policy. The job ships disabled; tests and the
// wiring layer opt in explicitly.
type Options struct {
	Enabled       bool
	RetentionDays int
	BatchSize     int
}

// DefaultOptions returns the disabled default policy.
func DefaultOptions() Options {
	return Options{Enabled: false, RetentionDays: 90, BatchSize: 100}
}

// Job purges aged, synced tombstones in bounded batches.
type Job struct {
	transactions *repository.TransactionRepo
	opts         Options
	log          zerolog.Logger
	now          func() time.Time
}

func NewJob(transactions *repository.TransactionRepo, opts Options, log zerolog.Logger) *Job {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 90
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Job{transactions: transactions, opts: opts, log: log, now: time.Now}
}

// PurgeTombstones removes every eligible tombstone and returns the
// count. When the job is disabled it is a no-op returning zero.
// Internal failures are logged and swallowed; the job never propagates
// errors to its caller.
func (j *Job) PurgeTombstones(ctx context.Context) int {
	if !j.opts.Enabled {
		return 0
	}

	all, err := j.transactions.AllIncludingDeleted()
	if err != nil {
		j.log.Warn().Err(err).Msg("purge: list transactions")
		return 0
	}

	cutoff := j.now().UTC().AddDate(0, 0, -j.opts.RetentionDays)
	var eligible []string
	for _, t := range all {
		if t.Deleted && t.SyncStatus == model.SyncSynced && t.UpdatedAt.Before(cutoff) {
			eligible = append(eligible, t.ID)
		}
	}

	purged := 0
	for start := 0; start < len(eligible); start += j.opts.BatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + j.opts.BatchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		n, err := j.transactions.PurgeBatch(eligible[start:end])
		if err != nil {
			j.log.Warn().Err(err).Msg("purge: batch failed")
			break
		}
		purged += n
	}

	if purged > 0 {
		j.log.Info().Int("purged", purged).Msg("tombstones purged")
	}
	return purged
}
