// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"

	"document-signing-certificate-issuer/internal/domain"
	"document-signing-certificate-issuer/internal/pkcs10"
)

// ParameterStore は設定値ストアのインターフェース。
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// CertificateStore は発行済み証明書の保存先のインターフェース。
// Put は対象が存在しない場合のみ書き込み、存在すれば domain.ErrCertificateAlreadyIssued を返す。
type CertificateStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// SigningOracle は秘密鍵を保持する署名オラクルのインターフェース。
type SigningOracle interface {
	pkcs10.PublicKeyFetcher
	pkcs10.MessageSigner
}

// CertificateAuthority は証明書発行を行うCAのインターフェース。
type CertificateAuthority interface {
	IssueCertificate(ctx context.Context, req domain.IssueRequest) (string, error)
	GetCertificate(ctx context.Context, certificateARN, caARN string) (string, error)
}

// IssuanceLedger は発行台帳のインターフェース。
type IssuanceLedger interface {
	Create(ctx context.Context, record *domain.IssuanceRecord) error
	UpdateStatus(ctx context.Context, id string, status domain.IssuanceStatus, reason string) error
	FindLatestByKeyID(ctx context.Context, keyID string) (*domain.IssuanceRecord, error)
	FindPendingReconciliation(ctx context.Context) ([]*domain.IssuanceRecord, error)
}

// NopLedger はデータベース未設定時に使う何も記録しない台帳。
type NopLedger struct{}

func (NopLedger) Create(context.Context, *domain.IssuanceRecord) error { return nil }

func (NopLedger) UpdateStatus(context.Context, string, domain.IssuanceStatus, string) error {
	return nil
}

func (NopLedger) FindLatestByKeyID(context.Context, string) (*domain.IssuanceRecord, error) {
	return nil, nil
}

func (NopLedger) FindPendingReconciliation(context.Context) ([]*domain.IssuanceRecord, error) {
	return nil, nil
}
