package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ivanoskov/pocketledger/internal/model"
	"github.com/ivanoskov/pocketledger/internal/repository"
	"github.com/ivanoskov/pocketledger/internal/validate"
)

// Default categories seeded once per fresh database. Fixed ids keep the
// seeding idempotent across runs.
var defaultCategories = []model.Category{
	{ID: "5f1f9b9e-0000-4c61-9f6e-000000000001", Name: "Groceries", Icon: "cart"},
	{ID: "5f1f9b9e-0000-4c61-9f6e-000000000002", Name: "Transport", Icon: "bus"},
	{ID: "5f1f9b9e-0000-4c61-9f6e-000000000003", Name: "Entertainment", Icon: "film"},
	{ID: "5f1f9b9e-0000-4c61-9f6e-000000000004", Name: "Health", Icon: "heart"},
	{ID: "5f1f9b9e-0000-4c61-9f6e-000000000005", Name: "Shopping", Icon: "bag"},
	{ID: "5f1f9b9e-0000-4c61-9f6e-000000000006", Name: "Salary", Icon: "wallet"},
}

// DefaultCategoryCount is the size of the seeded set.
var DefaultCategoryCount = len(defaultCategories)

// CategoryStore is what the category service needs from the repository
// layer.
type CategoryStore interface {
	Upsert(c model.Category) (string, error)
	ByID(id string) (*model.Category, error)
	All() ([]model.Category, error)
	Delete(id, replacementID string) (bool, error)
}

// TransactionCounter reports how many transactions reference a category.
type TransactionCounter interface {
	CountByCategory(categoryID string) (int, error)
}

// PreferencesStore carries the seeded flag.
type PreferencesStore interface {
	Get() (model.Preferences, error)
	Mutate(fn func(p *model.Preferences)) error
}

// CategoryService owns category lifecycle: seeding, creation and removal
// with reference reassignment.
type CategoryService struct {
	repo         CategoryStore
	transactions TransactionCounter
	prefs        PreferencesStore
	log          zerolog.Logger
}

func NewCategoryService(repo CategoryStore, transactions TransactionCounter, prefs PreferencesStore, log zerolog.Logger) *CategoryService {
	return &CategoryService{repo: repo, transactions: transactions, prefs: prefs, log: log}
}

// EnsureDefaults seeds the default set exactly once. The seeded flag in
// preferences short-circuits repeat runs; the per-id existence checks
// make a re-run safe even if the flag was lost.
func (s *CategoryService) EnsureDefaults() error {
	p, err := s.prefs.Get()
	if err != nil {
		return fmt.Errorf("read preferences: %w", err)
	}
	if p.CategoriesSeeded {
		return nil
	}

	seeded := 0
	for _, c := range defaultCategories {
		existing, err := s.repo.ByID(c.ID)
		if err != nil {
			return fmt.Errorf("check default category %s: %w", c.Name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.repo.Upsert(c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		seeded++
	}
	if err := s.prefs.Mutate(func(p *model.Preferences) { p.CategoriesSeeded = true }); err != nil {
		return err
	}
	s.log.Info().Int("seeded", seeded).Msg("default categories ensured")
	return nil
}

// Save validates and upserts a category draft.
func (s *CategoryService) Save(draft validate.CategoryDraft) (string, error) {
	v, err := validate.ValidateCategoryDraft(draft)
	if err != nil {
		return "", err
	}
	return s.repo.Upsert(model.Category{
		ID:          v.ID,
		Name:        v.Name,
		Icon:        v.Icon,
		UserDefined: v.UserDefined,
	})
}

// Get resolves a category by id.
func (s *CategoryService) Get(id string) (*model.Category, error) {
	return s.repo.ByID(id)
}

// Active returns every category ordered by name.
func (s *CategoryService) Active() ([]model.Category, error) {
	return s.repo.All()
}

// Remove deletes a category. A category still referenced by
// transactions needs a replacement id; the referencing transactions are
// reassigned atomically before the record is removed.
func (s *CategoryService) Remove(id, replacementID string) (bool, error) {
	refs, err := s.transactions.CountByCategory(id)
	if err != nil {
		return false, fmt.Errorf("count references: %w", err)
	}
	if refs > 0 && replacementID == "" {
		return false, repository.ErrCategoryInUse
	}
	if refs == 0 {
		replacementID = ""
	}
	ok, err := s.repo.Delete(id, replacementID)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Debug().Str("id", id).Int("reassigned", refs).Msg("category removed")
	}
	return ok, nil
}
