package domain

import "time"

// IssuanceStatus は発行記録の状態を表す。
type IssuanceStatus string

const (
	// IssuanceStatusRequested はCAが発行リクエストを受理した状態。
	IssuanceStatusRequested IssuanceStatus = "requested"
	// IssuanceStatusIssued は証明書を取得済みだが未保存の状態。
	IssuanceStatusIssued IssuanceStatus = "issued"
	// IssuanceStatusPersisted は証明書を保存済みの状態。
	IssuanceStatusPersisted IssuanceStatus = "persisted"
	// IssuanceStatusFailed は発行が失敗した状態。
	IssuanceStatusFailed IssuanceStatus = "failed"
)

// IssuanceRecord は証明書発行の台帳エントリを表す。
type IssuanceRecord struct {
	ID                      string
	KeyID                   string
	CertificateAuthorityARN string
	CertificateARN          string
	Status                  IssuanceStatus
	FailureReason           string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NeedsReconciliation はCAで発行済みだが保存されていない記録かを返す。
func (r *IssuanceRecord) NeedsReconciliation() bool {
	if r.CertificateARN == "" {
		return false
	}
	return r.Status == IssuanceStatusRequested || r.Status == IssuanceStatusIssued
}
