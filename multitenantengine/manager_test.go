//go:build integration

package multitenantengine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/tariffs/internal/fixtures"
	"github.com/liamcoop/tariffs/internal/testdb"
	"github.com/liamcoop/tariffs/tariff"
)

func decemberPipeline() tariff.EngineOption {
	return tariff.WithPipeline(tariff.NewPipeline(tariff.WithClock(func() time.Time {
		return time.Date(2021, time.December, 15, 12, 0, 0, 0, time.UTC)
	})))
}

func TestMultiTenantEngineManager_LoadAllTenants(t *testing.T) {
	db := testdb.Postgres(t)
	tenantID := testdb.CreateTenant(t, db, "Bangkok General")

	store := tariff.NewPostgresTariffStore(db, tenantID)
	if err := store.Add(fixtures.MiddleAgedManTariff()); err != nil {
		t.Fatalf("Failed to add tariff: %v", err)
	}

	manager := NewMultiTenantEngineManager(db, WithEngineOptions(decemberPipeline()))
	if err := manager.LoadAllTenants(); err != nil {
		t.Fatalf("LoadAllTenants() failed: %v", err)
	}

	tenants := manager.ListTenants()
	if len(tenants) != 1 || tenants[0].ID != tenantID || tenants[0].Name != "Bangkok General" {
		t.Fatalf("ListTenants() = %+v, want the created tenant", tenants)
	}

	engine, err := manager.GetEngine(tenantID)
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	patient, _ := fixtures.Patient("Chalermpon")
	ev, err := engine.Evaluate("middle-aged-man", patient, fixtures.SampleBasket())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if ev.AppliedCount() != 4 {
		t.Errorf("AppliedCount() = %d, want 4", ev.AppliedCount())
	}
}

func TestMultiTenantEngineManager_CreateTenant(t *testing.T) {
	db := testdb.Postgres(t)
	manager := NewMultiTenantEngineManager(db, WithInMemoryCache(tariff.DefaultCacheConfig()))

	created, err := manager.CreateTenant("Chiang Mai Clinic")
	if err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Errorf("CreateTenant() = %+v, want generated ID and timestamps", created)
	}

	engine, err := manager.GetEngine(created.ID)
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	active, err := engine.ActiveTariffs()
	if err != nil || len(active) != 0 {
		t.Errorf("new tenant ActiveTariffs() = %v, %v; want empty", active, err)
	}

	if _, err := manager.CreateTenant("Chiang Mai Clinic"); err == nil {
		t.Error("duplicate tenant name should be rejected")
	}
}

func TestMultiTenantEngineManager_ReloadTenant(t *testing.T) {
	db := testdb.Postgres(t)
	tenantID := testdb.CreateTenant(t, db, "Phuket Clinic")

	manager := NewMultiTenantEngineManager(db)
	if err := manager.LoadAllTenants(); err != nil {
		t.Fatalf("LoadAllTenants() failed: %v", err)
	}
	before, _ := manager.GetEngine(tenantID)

	// written behind the engine's back
	store := tariff.NewPostgresTariffStore(db, tenantID)
	if err := store.Add(fixtures.BirthMonthTariff()); err != nil {
		t.Fatalf("Failed to add tariff: %v", err)
	}

	if err := manager.ReloadTenant(tenantID); err != nil {
		t.Fatalf("ReloadTenant() failed: %v", err)
	}
	after, _ := manager.GetEngine(tenantID)
	if after == before {
		t.Error("ReloadTenant() should swap in a new engine")
	}
	active, err := after.ActiveTariffs()
	if err != nil || len(active) != 1 {
		t.Errorf("ActiveTariffs() after reload = %v, %v; want one tariff", active, err)
	}
}

func TestMultiTenantEngineManager_TenantIsolation(t *testing.T) {
	db := testdb.Postgres(t)
	tenantA := testdb.CreateTenant(t, db, "Clinic A")
	tenantB := testdb.CreateTenant(t, db, "Clinic B")

	manager := NewMultiTenantEngineManager(db, WithEngineOptions(decemberPipeline()))
	if err := manager.LoadAllTenants(); err != nil {
		t.Fatalf("LoadAllTenants() failed: %v", err)
	}

	engineA, _ := manager.GetEngine(tenantA)
	engineB, _ := manager.GetEngine(tenantB)
	if err := engineA.AddTariff(fixtures.MiddleAgedManTariff()); err != nil {
		t.Fatalf("AddTariff() failed: %v", err)
	}

	patient, _ := fixtures.Patient("Chalermpon")
	if _, err := engineA.Evaluate("middle-aged-man", patient, fixtures.SampleBasket()); err != nil {
		t.Errorf("tenant A Evaluate() failed: %v", err)
	}
	if _, err := engineB.Evaluate("middle-aged-man", patient, fixtures.SampleBasket()); !errors.Is(err, tariff.ErrTariffNotFound) {
		t.Errorf("tenant B Evaluate() = %v, want ErrTariffNotFound", err)
	}
}

func TestMultiTenantEngineManager_Concurrency(t *testing.T) {
	db := testdb.Postgres(t)
	tenantID := testdb.CreateTenant(t, db, "Busy Clinic")

	manager := NewMultiTenantEngineManager(db)
	if err := manager.LoadAllTenants(); err != nil {
		t.Fatalf("LoadAllTenants() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := manager.GetEngine(tenantID); err != nil {
				t.Errorf("Concurrent GetEngine failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = manager.ListTenants()
		}()
		go func() {
			defer wg.Done()
			if err := manager.ReloadTenant(tenantID); err != nil {
				t.Errorf("Concurrent ReloadTenant failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestMultiTenantEngineManager_DeleteTenant(t *testing.T) {
	db := testdb.Postgres(t)
	tenantID := testdb.CreateTenant(t, db, "Closing Clinic")

	manager := NewMultiTenantEngineManager(db)
	if err := manager.LoadAllTenants(); err != nil {
		t.Fatalf("LoadAllTenants() failed: %v", err)
	}

	if err := manager.DeleteTenant(tenantID); err != nil {
		t.Fatalf("DeleteTenant() failed: %v", err)
	}
	if _, err := manager.GetEngine(tenantID); !errors.Is(err, ErrTenantNotFound) {
		t.Errorf("GetEngine() after delete = %v, want ErrTenantNotFound", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tenants WHERE id = $1`, tenantID).Scan(&count); err != nil {
		t.Fatalf("Failed to count tenants: %v", err)
	}
	if count != 1 {
		t.Error("DeleteTenant() should leave the tenant row in place")
	}
}
