// Package service holds the domain logic built on top of the repository
// layer: transaction saves and aggregates, category lifecycle and
// default seeding.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/pocketledger/internal/model"
	"github.com/ivanoskov/pocketledger/internal/validate"
)

// TransactionStore is what the transaction service needs from the
// repository layer.
type TransactionStore interface {
	Upsert(t model.Transaction) (string, error)
	SoftDelete(id string) (bool, error)
	ByID(id string) (*model.Transaction, error)
	Active() ([]model.Transaction, error)
	CountByCategory(categoryID string) (int, error)
}

// TransactionService validates and persists transactions and computes
// aggregates over the active set.
type TransactionService struct {
	repo      TransactionStore
	afterSave func(context.Context)
	log       zerolog.Logger
}

func NewTransactionService(repo TransactionStore, log zerolog.Logger) *TransactionService {
	return &TransactionService{repo: repo, log: log}
}

// OnSave registers a hook that runs after every successful save. The
// sync engine uses it to kick off a cycle.
func (s *TransactionService) OnSave(fn func(context.Context)) {
	s.afterSave = fn
}

// Save validates the draft and upserts it. Editing an existing
// transaction is a save with the same id; all fields are overwritten.
func (s *TransactionService) Save(ctx context.Context, draft validate.TransactionDraft) (string, error) {
	v, err := validate.ValidateTransactionDraft(draft)
	if err != nil {
		return "", err
	}
	id, err := s.repo.Upsert(model.Transaction{
		ID:          v.ID,
		Type:        v.Type,
		AmountCents: v.AmountCents,
		CategoryID:  v.CategoryID,
		Timestamp:   v.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	s.log.Debug().Str("id", id).Str("type", string(v.Type)).Msg("transaction saved")
	if s.afterSave != nil {
		s.afterSave(ctx)
	}
	return id, nil
}

// Delete tombstones a transaction. Returns false when id is unknown.
func (s *TransactionService) Delete(id string) (bool, error) {
	return s.repo.SoftDelete(id)
}

// Get resolves a transaction by id, tombstones included.
func (s *TransactionService) Get(id string) (*model.Transaction, error) {
	return s.repo.ByID(id)
}

// Active returns the non-deleted transactions, newest first.
func (s *TransactionService) Active() ([]model.Transaction, error) {
	return s.repo.Active()
}

// MonthToDate filters active transactions to the current calendar month
// in local time.
func (s *TransactionService) MonthToDate() ([]model.Transaction, error) {
	active, err := s.repo.Active()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := active[:0]
	for _, t := range active {
		if !t.Timestamp.Before(start) {
			out = append(out, t)
		}
	}
	return out, nil
}

// TotalIncomeCents sums income amounts. A nil subset means the full
// active set; pass MonthToDate() output to scope the sum.
func (s *TransactionService) TotalIncomeCents(subset []model.Transaction) (int64, error) {
	return s.sumByType(subset, model.TypeIncome)
}

// TotalExpenseCents sums expense amounts over the subset (nil = active).
func (s *TransactionService) TotalExpenseCents(subset []model.Transaction) (int64, error) {
	return s.sumByType(subset, model.TypeExpense)
}

// RemainingBalanceCents is income minus expenses over the subset
// (nil = active).
func (s *TransactionService) RemainingBalanceCents(subset []model.Transaction) (int64, error) {
	income, err := s.TotalIncomeCents(subset)
	if err != nil {
		return 0, err
	}
	expense, err := s.TotalExpenseCents(subset)
	if err != nil {
		return 0, err
	}
	return income - expense, nil
}

func (s *TransactionService) sumByType(subset []model.Transaction, typ model.TransactionType) (int64, error) {
	if subset == nil {
		active, err := s.repo.Active()
		if err != nil {
			return 0, err
		}
		subset = active
	}
	var total int64
	for _, t := range subset {
		if t.Type == typ && !t.Deleted {
			total += t.AmountCents
		}
	}
	return total, nil
}
