package repository

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"document-signing-certificate-issuer/internal/domain"
	"document-signing-certificate-issuer/migrations"
)

// setupTestDB はマイグレーションを適用したインメモリSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// :memory: は接続ごとに別DBになるため単一接続に固定する
	sqlDB.SetMaxOpenConns(1)

	sqlBytes, err := fs.ReadFile(migrations.FS, "001_create_issuance_records.sql")
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	for _, stmt := range strings.Split(string(sqlBytes), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create issuance_records table: %v", err)
		}
	}

	return db
}

func insertRecord(t *testing.T, db *gorm.DB, id, keyID, certARN string, status domain.IssuanceStatus, createdAt time.Time) {
	t.Helper()
	err := db.Exec(`INSERT INTO issuance_records
		(id, key_id, certificate_authority_arn, certificate_arn, status, failure_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		id, keyID, "arn:ca", certARN, string(status), createdAt, createdAt).Error
	if err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}
}

func TestIssuanceRepository_Create(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewIssuanceRepository(db)

	record := &domain.IssuanceRecord{
		KeyID:                   "key-1",
		CertificateAuthorityARN: "arn:ca",
		CertificateARN:          "arn:ca/certificate/1",
		Status:                  domain.IssuanceStatusRequested,
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if record.ID == "" {
		t.Error("expected ID to be generated")
	}
	if record.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	found, err := repo.FindLatestByKeyID(ctx, "key-1")
	if err != nil {
		t.Fatalf("FindLatestByKeyID failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected record, got nil")
	}
	if found.ID != record.ID {
		t.Errorf("want ID %s, got %s", record.ID, found.ID)
	}
	if found.CertificateARN != "arn:ca/certificate/1" {
		t.Errorf("want certificate ARN arn:ca/certificate/1, got %s", found.CertificateARN)
	}
	if found.Status != domain.IssuanceStatusRequested {
		t.Errorf("want status requested, got %s", found.Status)
	}
}

func TestIssuanceRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewIssuanceRepository(db)

	insertRecord(t, db, "id-1", "key-1", "arn:cert", domain.IssuanceStatusRequested, time.Now())

	if err := repo.UpdateStatus(ctx, "id-1", domain.IssuanceStatusFailed, "poll failed"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	found, err := repo.FindLatestByKeyID(ctx, "key-1")
	if err != nil {
		t.Fatalf("FindLatestByKeyID failed: %v", err)
	}
	if found.Status != domain.IssuanceStatusFailed {
		t.Errorf("want status failed, got %s", found.Status)
	}
	if found.FailureReason != "poll failed" {
		t.Errorf("want reason 'poll failed', got %q", found.FailureReason)
	}

	// 存在しないID
	err = repo.UpdateStatus(ctx, "missing", domain.IssuanceStatusPersisted, "")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("want ErrRecordNotFound, got %v", err)
	}
}

func TestIssuanceRepository_FindLatestByKeyID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewIssuanceRepository(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertRecord(t, db, "old", "key-1", "arn:cert/1", domain.IssuanceStatusFailed, base)
	insertRecord(t, db, "new", "key-1", "arn:cert/2", domain.IssuanceStatusPersisted, base.Add(time.Hour))
	insertRecord(t, db, "other", "key-2", "arn:cert/3", domain.IssuanceStatusPersisted, base.Add(2*time.Hour))

	found, err := repo.FindLatestByKeyID(ctx, "key-1")
	if err != nil {
		t.Fatalf("FindLatestByKeyID failed: %v", err)
	}
	if found.ID != "new" {
		t.Errorf("want latest record 'new', got %s", found.ID)
	}

	// 記録が存在しない場合はnil
	found, err = repo.FindLatestByKeyID(ctx, "key-3")
	if err != nil {
		t.Fatalf("FindLatestByKeyID failed: %v", err)
	}
	if found != nil {
		t.Errorf("expected nil, got %+v", found)
	}
}

func TestIssuanceRepository_FindPendingReconciliation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewIssuanceRepository(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertRecord(t, db, "issued", "key-1", "arn:cert/1", domain.IssuanceStatusIssued, base.Add(time.Minute))
	insertRecord(t, db, "requested", "key-2", "arn:cert/2", domain.IssuanceStatusRequested, base)
	insertRecord(t, db, "persisted", "key-3", "arn:cert/3", domain.IssuanceStatusPersisted, base)
	insertRecord(t, db, "failed", "key-4", "arn:cert/4", domain.IssuanceStatusFailed, base)
	insertRecord(t, db, "no-arn", "key-5", "", domain.IssuanceStatusRequested, base)

	records, err := repo.FindPendingReconciliation(ctx)
	if err != nil {
		t.Fatalf("FindPendingReconciliation failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].ID != "requested" || records[1].ID != "issued" {
		t.Errorf("want [requested issued] in creation order, got [%s %s]", records[0].ID, records[1].ID)
	}
	for _, r := range records {
		if !r.NeedsReconciliation() {
			t.Errorf("record %s should need reconciliation", r.ID)
		}
	}
}

func TestIssuanceRepository_TimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewIssuanceRepository(db)

	record := &domain.IssuanceRecord{
		KeyID:                   "key-1",
		CertificateAuthorityARN: "arn:ca",
		CertificateARN:          "arn:ca/certificate/1",
		Status:                  domain.IssuanceStatusRequested,
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, record.ID, domain.IssuanceStatusIssued, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// gormが書き込んだ時刻をスキーマの列型から読み戻せること
	pending, err := repo.FindPendingReconciliation(ctx)
	if err != nil {
		t.Fatalf("FindPendingReconciliation failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("want 1 record, got %d", len(pending))
	}
	got := pending[0]
	if got.Status != domain.IssuanceStatusIssued {
		t.Errorf("want status issued, got %s", got.Status)
	}
	if d := got.CreatedAt.Sub(record.CreatedAt); d < -time.Second || d > time.Second {
		t.Errorf("want CreatedAt near %v, got %v", record.CreatedAt, got.CreatedAt)
	}
	if got.UpdatedAt.Before(got.CreatedAt.Add(-time.Second)) {
		t.Errorf("UpdatedAt %v should not precede CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}

	latest, err := repo.FindLatestByKeyID(ctx, "key-1")
	if err != nil {
		t.Fatalf("FindLatestByKeyID failed: %v", err)
	}
	if latest == nil || latest.ID != record.ID || latest.CreatedAt.IsZero() {
		t.Errorf("unexpected latest record %+v", latest)
	}
}
