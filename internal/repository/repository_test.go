package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivanoskov/pocketledger/internal/localstore"
	"github.com/ivanoskov/pocketledger/internal/model"
)

func testStore(t *testing.T) *localstore.Store {
	t.Helper()
	key := make([]byte, 32)
	s, err := localstore.Open(filepath.Join(t.TempDir(), "repo.db"), key)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func expense(categoryID string, cents int64) model.Transaction {
	return model.Transaction{
		Type:        model.TypeExpense,
		AmountCents: cents,
		CategoryID:  categoryID,
		Timestamp:   time.Now(),
	}
}

func TestUpsertGeneratesIDAndDefaults(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))

	id, err := repo.Upsert(expense("c1", 500))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id == "" {
		t.Fatal("no id generated")
	}

	got, err := repo.ByID(id)
	if err != nil || got == nil {
		t.Fatalf("byid: %v %v", got, err)
	}
	if got.SyncStatus != model.SyncLocal {
		t.Errorf("sync status = %q, want local", got.SyncStatus)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("updatedAt not set")
	}
}

func TestUpsertIdempotence(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))

	first := expense("c1", 500)
	id, err := repo.Upsert(first)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := repo.ByID(id)

	time.Sleep(2 * time.Millisecond)
	second := first
	second.ID = id
	if _, err := repo.Upsert(second); err != nil {
		t.Fatal(err)
	}

	all, err := repo.AllIncludingDeleted()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("stored records = %d, want 1", len(all))
	}
	after, _ := repo.ByID(id)
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("updatedAt did not advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestSyncedUpsertPreservesRemoteUpdatedAt(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))

	remoteTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := expense("c1", 100)
	tr.ID = "ab9f5a6e-3f02-4c61-9f6e-3a8f6f2d1a20"
	tr.SyncStatus = model.SyncSynced
	tr.UpdatedAt = remoteTime

	if _, err := repo.Upsert(tr); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.ByID(tr.ID)
	if !got.UpdatedAt.Equal(remoteTime) {
		t.Errorf("updatedAt = %v, want remote %v", got.UpdatedAt, remoteTime)
	}
	if got.SyncStatus != model.SyncSynced {
		t.Errorf("sync status = %q, want synced", got.SyncStatus)
	}
}

func TestSoftDeleteExclusion(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))

	id, _ := repo.Upsert(expense("c1", 500))
	if _, err := repo.Upsert(expense("c1", 700)); err != nil {
		t.Fatal(err)
	}

	ok, err := repo.SoftDelete(id)
	if err != nil || !ok {
		t.Fatalf("soft delete: ok=%v err=%v", ok, err)
	}

	active, err := repo.Active()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}

	// still resolvable by id until purged
	got, err := repo.ByID(id)
	if err != nil || got == nil {
		t.Fatalf("tombstone not resolvable: %v %v", got, err)
	}
	if !got.Deleted || got.SyncStatus != model.SyncLocal {
		t.Errorf("tombstone state: deleted=%v status=%q", got.Deleted, got.SyncStatus)
	}

	if ok, _ := repo.SoftDelete("missing"); ok {
		t.Error("soft delete of unknown id reported true")
	}
}

func TestPurge(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))
	id, _ := repo.Upsert(expense("c1", 500))

	ok, err := repo.Purge(id)
	if err != nil || !ok {
		t.Fatalf("purge: ok=%v err=%v", ok, err)
	}
	if got, _ := repo.ByID(id); got != nil {
		t.Error("purged record still resolvable")
	}
	if ok, _ := repo.Purge(id); ok {
		t.Error("second purge reported true")
	}
}

func TestMarkSyncedGuard(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))
	id, _ := repo.Upsert(expense("c1", 500))
	snap, _ := repo.ByID(id)

	// a concurrent edit after the snapshot keeps its local status
	time.Sleep(2 * time.Millisecond)
	edited := *snap
	if _, err := repo.Upsert(edited); err != nil {
		t.Fatal(err)
	}
	marked, err := repo.MarkSynced(id, snap.UpdatedAt)
	if err != nil {
		t.Fatal(err)
	}
	if marked {
		t.Error("stale MarkSynced overrode a newer edit")
	}
	got, _ := repo.ByID(id)
	if got.SyncStatus != model.SyncLocal {
		t.Errorf("status = %q, want local", got.SyncStatus)
	}

	// unchanged record gets marked, updatedAt untouched
	marked, err = repo.MarkSynced(id, got.UpdatedAt)
	if err != nil || !marked {
		t.Fatalf("mark synced: marked=%v err=%v", marked, err)
	}
	after, _ := repo.ByID(id)
	if after.SyncStatus != model.SyncSynced {
		t.Errorf("status = %q, want synced", after.SyncStatus)
	}
	if !after.UpdatedAt.Equal(got.UpdatedAt) {
		t.Error("MarkSynced bumped updatedAt")
	}
}

func TestActiveOrderedByTimestampDesc(t *testing.T) {
	repo := NewTransactionRepo(testStore(t))
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []int{2, 0, 1} {
		tr := expense("c1", 100)
		tr.Timestamp = base.AddDate(0, 0, offset)
		if _, err := repo.Upsert(tr); err != nil {
			t.Fatal(err)
		}
	}
	active, err := repo.Active()
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(active); i++ {
		if active[i].Timestamp.After(active[i-1].Timestamp) {
			t.Fatal("active transactions not ordered newest first")
		}
	}
}

func TestCategoryUpsertPreservesCreatedAt(t *testing.T) {
	repo := NewCategoryRepo(testStore(t))

	id, err := repo.Upsert(model.Category{Name: "Food", Icon: "cart", UserDefined: true})
	if err != nil {
		t.Fatal(err)
	}
	created, _ := repo.ByID(id)

	time.Sleep(2 * time.Millisecond)
	if _, err := repo.Upsert(model.Category{ID: id, Name: "Food & Drink", Icon: "cart", UserDefined: true}); err != nil {
		t.Fatal(err)
	}
	updated, _ := repo.ByID(id)
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed on update: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if updated.Name != "Food & Drink" {
		t.Errorf("name = %q", updated.Name)
	}
}

func TestCategoriesOrderedByName(t *testing.T) {
	repo := NewCategoryRepo(testStore(t))
	for _, name := range []string{"zoo", "Apple", "mango"} {
		if _, err := repo.Upsert(model.Category{Name: name, Icon: "i"}); err != nil {
			t.Fatal(err)
		}
	}
	all, err := repo.All()
	if err != nil {
		t.Fatal(err)
	}
	got := []string{all[0].Name, all[1].Name, all[2].Name}
	want := []string{"Apple", "mango", "zoo"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDeleteCategoryReassignsAtomically(t *testing.T) {
	store := testStore(t)
	cats := NewCategoryRepo(store)
	txns := NewTransactionRepo(store)

	oldID, _ := cats.Upsert(model.Category{Name: "Old", Icon: "o"})
	newID, _ := cats.Upsert(model.Category{Name: "New", Icon: "n"})

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := txns.Upsert(expense(oldID, 100)); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := cats.Delete(oldID, newID)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	active, _ := txns.Active()
	toNew, toOld := 0, 0
	for _, tr := range active {
		switch tr.CategoryID {
		case newID:
			toNew++
		case oldID:
			toOld++
		}
		if tr.CategoryID == newID && tr.SyncStatus != model.SyncLocal {
			t.Error("reassigned transaction not reset to local")
		}
	}
	if toNew != n || toOld != 0 {
		t.Errorf("reassigned = %d (want %d), stale = %d (want 0)", toNew, n, toOld)
	}
	if c, _ := cats.ByID(oldID); c != nil {
		t.Error("deleted category still present")
	}
}

func TestDeleteCategoryInUseWithoutReplacement(t *testing.T) {
	store := testStore(t)
	cats := NewCategoryRepo(store)
	txns := NewTransactionRepo(store)

	id, _ := cats.Upsert(model.Category{Name: "Busy", Icon: "b"})
	if _, err := txns.Upsert(expense(id, 100)); err != nil {
		t.Fatal(err)
	}

	_, err := cats.Delete(id, "")
	if !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("err = %v, want ErrCategoryInUse", err)
	}
	// nothing was removed
	if c, _ := cats.ByID(id); c == nil {
		t.Error("category removed despite error")
	}
}

func TestDeleteUnreferencedCategory(t *testing.T) {
	cats := NewCategoryRepo(testStore(t))
	id, _ := cats.Upsert(model.Category{Name: "Lonely", Icon: "l"})

	ok, err := cats.Delete(id, "")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := cats.Delete("missing", ""); ok {
		t.Error("delete of unknown id reported true")
	}
}

func TestPreferencesLazyCreation(t *testing.T) {
	repo := NewPreferencesRepo(testStore(t))

	p, err := repo.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ID != model.PreferencesID {
		t.Errorf("id = %q", p.ID)
	}
	if p.DashboardPeriod != model.PeriodMonthToDate {
		t.Errorf("period = %q", p.DashboardPeriod)
	}
	if p.LastSyncAt != nil {
		t.Error("fresh preferences has LastSyncAt")
	}

	if err := repo.SetTheme("dark"); err != nil {
		t.Fatal(err)
	}
	when := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SetLastSync(when); err != nil {
		t.Fatal(err)
	}

	p, _ = repo.Get()
	if p.Theme != "dark" {
		t.Errorf("theme = %q", p.Theme)
	}
	if p.LastSyncAt == nil || !p.LastSyncAt.Equal(when) {
		t.Errorf("lastSyncAt = %v", p.LastSyncAt)
	}
}
