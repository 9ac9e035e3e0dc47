package repository

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupEmptyDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigrationRepository_ApplyAndRecord(t *testing.T) {
	ctx := context.Background()
	db := setupEmptyDB(t)
	repo := NewMigrationRepository(db)

	if err := repo.EnsureHistoryTable(ctx); err != nil {
		t.Fatalf("EnsureHistoryTable failed: %v", err)
	}

	applied, err := repo.IsMigrationApplied(ctx, "001")
	if err != nil {
		t.Fatalf("IsMigrationApplied failed: %v", err)
	}
	if applied {
		t.Error("expected applied=false before apply")
	}

	err = repo.Apply(ctx, "001", []string{
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY)",
		"CREATE INDEX idx_widgets ON widgets (id)",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	applied, err = repo.IsMigrationApplied(ctx, "001")
	if err != nil {
		t.Fatalf("IsMigrationApplied failed: %v", err)
	}
	if !applied {
		t.Error("expected applied=true after apply")
	}

	all, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(all) != 1 || all[0].Version != "001" || all[0].AppliedAt == nil {
		t.Errorf("unexpected applied migrations: %+v", all)
	}
}

func TestMigrationRepository_ApplyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupEmptyDB(t)
	repo := NewMigrationRepository(db)

	if err := repo.EnsureHistoryTable(ctx); err != nil {
		t.Fatalf("EnsureHistoryTable failed: %v", err)
	}

	err := repo.Apply(ctx, "002", []string{"CREATE TABLE ok (id INTEGER)", "NOT VALID SQL"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	applied, err := repo.IsMigrationApplied(ctx, "002")
	if err != nil {
		t.Fatalf("IsMigrationApplied failed: %v", err)
	}
	if applied {
		t.Error("expected migration not to be recorded after failure")
	}
}
