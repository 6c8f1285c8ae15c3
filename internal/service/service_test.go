package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/pocketledger/internal/localstore"
	"github.com/ivanoskov/pocketledger/internal/logger"
	"github.com/ivanoskov/pocketledger/internal/model"
	"github.com/ivanoskov/pocketledger/internal/repository"
	"github.com/ivanoskov/pocketledger/internal/validate"
)

type fixture struct {
	transactions *TransactionService
	categories   *CategoryService
	txRepo       *repository.TransactionRepo
	catRepo      *repository.CategoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key := make([]byte, 32)
	store, err := localstore.Open(filepath.Join(t.TempDir(), "svc.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.NewWithWriter(io.Discard)
	txRepo := repository.NewTransactionRepo(store)
	catRepo := repository.NewCategoryRepo(store)
	prefRepo := repository.NewPreferencesRepo(store)
	return &fixture{
		transactions: NewTransactionService(txRepo, log),
		categories:   NewCategoryService(catRepo, txRepo, prefRepo, log),
		txRepo:       txRepo,
		catRepo:      catRepo,
	}
}

func draft(typ, amount, categoryID string) validate.TransactionDraft {
	return validate.TransactionDraft{Type: typ, Amount: amount, CategoryID: categoryID}
}

func TestSaveValidatesAndPersists(t *testing.T) {
	f := newFixture(t)

	id, err := f.transactions.Save(context.Background(), draft("expense", "12.50", "c1"))
	require.NoError(t, err)

	got, err := f.transactions.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1250), got.AmountCents)
	assert.Equal(t, model.TypeExpense, got.Type)

	_, err = f.transactions.Save(context.Background(), draft("expense", "0.004", "c1"))
	require.Error(t, err)
	verr, ok := err.(*validate.ValidationError)
	require.True(t, ok, "expected a field-tagged validation error, got %v", err)
	assert.Equal(t, "amount", verr.Field)
}

func TestSaveRunsHook(t *testing.T) {
	f := newFixture(t)
	called := 0
	f.transactions.OnSave(func(context.Context) { called++ })

	_, err := f.transactions.Save(context.Background(), draft("income", "5", "c1"))
	require.NoError(t, err)
	assert.Equal(t, 1, called)

	// a failed save must not fire the hook
	_, err = f.transactions.Save(context.Background(), draft("income", "abc", "c1"))
	require.Error(t, err)
	assert.Equal(t, 1, called)
}

func TestEditOverwritesAllFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.transactions.Save(ctx, draft("expense", "10", "c1"))
	require.NoError(t, err)

	edit := draft("income", "20", "c2")
	edit.ID = id
	editedID, err := f.transactions.Save(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, id, editedID)

	got, err := f.transactions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.TypeIncome, got.Type)
	assert.Equal(t, int64(2000), got.AmountCents)
	assert.Equal(t, "c2", got.CategoryID)

	active, err := f.transactions.Active()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.transactions.Save(ctx, draft("income", "100", "c1"))
	require.NoError(t, err)
	_, err = f.transactions.Save(ctx, draft("expense", "30", "c1"))
	require.NoError(t, err)
	deletedID, err := f.transactions.Save(ctx, draft("expense", "5", "c1"))
	require.NoError(t, err)

	// tombstones are excluded from every aggregate
	ok, err := f.transactions.Delete(deletedID)
	require.NoError(t, err)
	require.True(t, ok)

	income, err := f.transactions.TotalIncomeCents(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), income)

	expense, err := f.transactions.TotalExpenseCents(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), expense)

	balance, err := f.transactions.RemainingBalanceCents(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), balance)

	// explicit subset scopes the sums
	subset := []model.Transaction{{Type: model.TypeIncome, AmountCents: 250}}
	income, err = f.transactions.TotalIncomeCents(subset)
	require.NoError(t, err)
	assert.Equal(t, int64(250), income)
}

func TestMonthToDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	thisMonth := draft("expense", "10", "c1")
	thisMonth.Timestamp = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	_, err := f.transactions.Save(ctx, thisMonth)
	require.NoError(t, err)

	lastMonth := draft("expense", "20", "c1")
	lastMonth.Timestamp = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Add(-time.Hour)
	_, err = f.transactions.Save(ctx, lastMonth)
	require.NoError(t, err)

	mtd, err := f.transactions.MonthToDate()
	require.NoError(t, err)
	require.Len(t, mtd, 1)
	assert.Equal(t, int64(1000), mtd[0].AmountCents)
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.categories.EnsureDefaults())
	first, err := f.categories.Active()
	require.NoError(t, err)
	assert.Len(t, first, DefaultCategoryCount)

	// second run: no duplicates
	require.NoError(t, f.categories.EnsureDefaults())
	second, err := f.categories.Active()
	require.NoError(t, err)
	assert.Len(t, second, DefaultCategoryCount)

	for _, c := range second {
		assert.False(t, c.UserDefined, "seeded category %s marked user-defined", c.Name)
	}
}

func TestRemoveCategoryRequiresReplacementWhenReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	catID, err := f.categories.Save(validate.CategoryDraft{Name: "Travel", Icon: "plane", UserDefined: true})
	require.NoError(t, err)
	replacementID, err := f.categories.Save(validate.CategoryDraft{Name: "Other", Icon: "dots", UserDefined: true})
	require.NoError(t, err)

	_, err = f.transactions.Save(ctx, draft("expense", "50", catID))
	require.NoError(t, err)

	_, err = f.categories.Remove(catID, "")
	assert.ErrorIs(t, err, repository.ErrCategoryInUse)

	ok, err := f.categories.Remove(catID, replacementID)
	require.NoError(t, err)
	require.True(t, ok)

	active, err := f.transactions.Active()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, replacementID, active[0].CategoryID)
}

func TestRemoveUnreferencedCategory(t *testing.T) {
	f := newFixture(t)
	id, err := f.categories.Save(validate.CategoryDraft{Name: "Empty", Icon: "box", UserDefined: true})
	require.NoError(t, err)

	ok, err := f.categories.Remove(id, "")
	require.NoError(t, err)
	assert.True(t, ok)
}
