package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// testPool connects to CATALOG_TEST_DATABASE_URL and migrates it. Tests
// using it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("CATALOG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CATALOG_TEST_DATABASE_URL not set")
	}
	if err := Migrate(url); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := Connect(ctx, PoolConfig{URL: url, MaxConns: 4})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestBatchStore_ClaimOnce(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewBatchStore(pool)
	id := "it-" + uuid.NewString()

	b := core.ImportBatch{ID: id, Status: core.BatchPending, FileName: "apps.csv", CreatedAt: time.Now().UTC()}
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, b); !errors.Is(err, core.ErrDuplicateBatch) {
		t.Fatalf("second Create = %v, want ErrDuplicateBatch", err)
	}

	pending, inProgress := core.BatchPending, core.BatchInProgress
	claim := core.BatchUpdate{ExpectStatus: &pending, Status: &inProgress}

	results := make(chan error, 4)
	for range 4 {
		go func() {
			_, err := store.Update(ctx, id, claim)
			results <- err
		}()
	}
	var won, conflicts int
	for range 4 {
		switch err := <-results; {
		case err == nil:
			won++
		case errors.Is(err, core.ErrBatchConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || conflicts != 3 {
		t.Errorf("won %d, conflicts %d; want exactly one claim", won, conflicts)
	}

	report := []core.ErrorReportEntry{{Row: 2, Field: "name", Message: "required field is empty"}}
	completed, one := core.BatchCompleted, 1
	got, err := store.Update(ctx, id, core.BatchUpdate{Status: &completed, FailureCount: &one, ErrorReport: report})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	stored, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != core.BatchCompleted || len(stored.ErrorReport) != 1 || got.FailureCount != 1 {
		t.Errorf("stored = %+v", stored)
	}

	if _, err := store.Get(ctx, "it-missing"); !errors.Is(err, core.ErrBatchNotFound) {
		t.Errorf("Get(missing) = %v, want ErrBatchNotFound", err)
	}
}

func TestElementRepository_FindAndUpsert(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewElementRepository(pool)
	elementType := "it_" + uuid.NewString()

	id, err := repo.Upsert(ctx, elementType, "", map[string]any{"name": "Billing", "applicationCode": "BIL-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	el, err := repo.FindByKey(ctx, elementType, core.KeyApplicationCode, "bil-1")
	if err != nil || el == nil || el.ID != id {
		t.Fatalf("FindByKey(code) = %+v, %v; want %s", el, err, id)
	}
	if el, _ := repo.FindByKey(ctx, elementType, core.KeyName, "BILLING"); el == nil || el.ID != id {
		t.Errorf("FindByKey(name) = %+v, want %s", el, id)
	}
	if el, _ := repo.FindByKey(ctx, elementType, core.KeyName, "Payroll"); el != nil {
		t.Errorf("FindByKey(Payroll) = %+v, want nil", el)
	}

	if _, err := repo.Upsert(ctx, elementType, id, map[string]any{"name": "Billing v2"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.GetElement(ctx, id)
	if err != nil {
		t.Fatalf("GetElement: %v", err)
	}
	if updated.Name != "Billing v2" || updated.Attributes["applicationCode"] != "BIL-1" {
		t.Errorf("updated = %+v, want new name and the code kept", updated)
	}

	if _, err := repo.Upsert(ctx, elementType, uuid.NewString(), map[string]any{"name": "x"}); !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("update of unknown id = %v, want ErrElementNotFound", err)
	}
}

func TestTemplateStore_UniqueNames(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewTemplateStore(pool)
	elementType := "it_" + uuid.NewString()
	now := time.Now().UTC()

	tmpl := core.MappingTemplate{ID: uuid.NewString(), ElementType: elementType, Name: "Vendor", CreatedAt: now, UpdatedAt: now}
	if _, err := store.CreateTemplate(ctx, tmpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	dup := tmpl
	dup.ID = uuid.NewString()
	dup.Name = "VENDOR"
	if _, err := store.CreateTemplate(ctx, dup); !errors.Is(err, core.ErrDuplicateTemplate) {
		t.Errorf("duplicate name = %v, want ErrDuplicateTemplate", err)
	}

	if err := store.DeleteTemplate(ctx, tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := store.GetTemplate(ctx, tmpl.ID); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("GetTemplate after delete = %v, want ErrTemplateNotFound", err)
	}
}

func TestAuditLog_RecordAndList(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	log := NewAuditLog(pool)
	batchID := "it-" + uuid.NewString()

	entry := core.AuditEntry{
		ID:        uuid.NewString(),
		Action:    core.ActionBatchCreate,
		Severity:  core.SeverityMedium,
		BatchID:   batchID,
		IPAddress: "192.0.2.1",
		Details:   map[string]any{"fileName": "apps.csv"},
		CreatedAt: time.Now().UTC(),
	}
	if err := log.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	page, err := log.List(ctx, core.AuditQuery{BatchID: batchID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || page.Entries[0].IPAddress != "192.0.2.1" || page.Entries[0].Details["fileName"] != "apps.csv" {
		t.Errorf("page = %+v", page)
	}
}
