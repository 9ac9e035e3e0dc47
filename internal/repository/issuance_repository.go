// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"document-signing-certificate-issuer/internal/domain"
)

// IssuanceRecordModel はgorm用のモデル定義。
type IssuanceRecordModel struct {
	ID                      string    `gorm:"type:char(36);primaryKey"`
	KeyID                   string    `gorm:"type:varchar(255);not null;index:idx_key_id"`
	CertificateAuthorityARN string    `gorm:"column:certificate_authority_arn;type:varchar(255);not null"`
	CertificateARN          string    `gorm:"column:certificate_arn;type:varchar(512);not null;default:''"`
	Status                  string    `gorm:"type:varchar(16);not null;index:idx_status"`
	FailureReason           string    `gorm:"type:text"`
	CreatedAt               time.Time `gorm:"type:datetime;not null;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"type:datetime;not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (IssuanceRecordModel) TableName() string {
	return "issuance_records"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *IssuanceRecordModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *IssuanceRecordModel) toDomain() *domain.IssuanceRecord {
	return &domain.IssuanceRecord{
		ID:                      m.ID,
		KeyID:                   m.KeyID,
		CertificateAuthorityARN: m.CertificateAuthorityARN,
		CertificateARN:          m.CertificateARN,
		Status:                  domain.IssuanceStatus(m.Status),
		FailureReason:           m.FailureReason,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

// IssuanceRepository は発行台帳へのアクセスを提供する。
type IssuanceRepository struct {
	db *gorm.DB
}

// NewIssuanceRepository は新しいIssuanceRepositoryを生成する。
func NewIssuanceRepository(db *gorm.DB) *IssuanceRepository {
	return &IssuanceRepository{db: db}
}

// Create は発行記録を保存する。
func (r *IssuanceRepository) Create(ctx context.Context, record *domain.IssuanceRecord) error {
	model := &IssuanceRecordModel{
		ID:                      record.ID,
		KeyID:                   record.KeyID,
		CertificateAuthorityARN: record.CertificateAuthorityARN,
		CertificateARN:          record.CertificateARN,
		Status:                  string(record.Status),
		FailureReason:           record.FailureReason,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create issuance record",
			"operation", "create",
			"key_id", record.KeyID,
			"error", err,
		)
		return err
	}
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	return nil
}

// UpdateStatus は発行記録の状態を更新する。reason は failed の場合のみ意味を持つ。
func (r *IssuanceRepository) UpdateStatus(ctx context.Context, id string, status domain.IssuanceStatus, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&IssuanceRecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         string(status),
			"failure_reason": reason,
		})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to update issuance status",
			"operation", "update_status",
			"id", id,
			"status", status,
			"error", result.Error,
		)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindLatestByKeyID は指定された鍵の最新の発行記録を取得する。存在しない場合は nil を返す。
func (r *IssuanceRepository) FindLatestByKeyID(ctx context.Context, keyID string) (*domain.IssuanceRecord, error) {
	var model IssuanceRecordModel
	err := r.db.WithContext(ctx).
		Where("key_id = ?", keyID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find latest issuance record",
			"operation", "find_latest_by_key_id",
			"key_id", keyID,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindPendingReconciliation はCAで発行済みだが保存されていない記録を古い順に取得する。
func (r *IssuanceRepository) FindPendingReconciliation(ctx context.Context) ([]*domain.IssuanceRecord, error) {
	var models []IssuanceRecordModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND certificate_arn <> ''", []string{
			string(domain.IssuanceStatusRequested),
			string(domain.IssuanceStatusIssued),
		}).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find issuance records pending reconciliation",
			"operation", "find_pending_reconciliation",
			"error", err,
		)
		return nil, err
	}

	records := make([]*domain.IssuanceRecord, len(models))
	for i := range models {
		records[i] = models[i].toDomain()
	}
	return records, nil
}
