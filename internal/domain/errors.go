package domain

import "errors"

var (
	// ErrConfiguration は必須設定が欠落・不正な場合のエラー。副作用の前に検出される。
	ErrConfiguration = errors.New("invalid configuration")

	// ErrCertificateAlreadyIssued はこの鍵の証明書が既に保存されている場合のエラー。
	// 失敗ではなく想定内の中断として扱う。
	ErrCertificateAlreadyIssued = errors.New("certificate already exists for this key")

	// ErrKeyRetrieval は署名オラクルから公開鍵を取得できない場合のエラー。
	ErrKeyRetrieval = errors.New("error retrieving public key from signing oracle")

	// ErrSignatureEncoding はオラクルの署名をASN.1形式に変換できない場合のエラー。
	ErrSignatureEncoding = errors.New("cannot convert signature value to ASN.1 format")

	// ErrSigning は署名オラクルが署名を返さない場合のエラー。
	ErrSigning = errors.New("error signing the request with signing oracle")

	// ErrIssuanceRequest はCAが発行リクエストを拒否した場合のエラー。
	ErrIssuanceRequest = errors.New("failed to issue certificate")

	// ErrPollTransient はCAが処理中を返した場合のエラー。ポーリング内でのみ使われる。
	ErrPollTransient = errors.New("certificate request in progress")

	// ErrPollFatal はポーリング中の再試行不能なエラー。
	ErrPollFatal = errors.New("failed to retrieve certificate")

	// ErrPollTimeout はポーリングが上限に達した場合のエラー。
	ErrPollTimeout = errors.New("timed out waiting for certificate")

	// ErrPersistence は発行済み証明書の保存に失敗した場合のエラー。
	ErrPersistence = errors.New("failed to persist issued certificate")

	// ErrParameterNotFound はパラメータストアに値が存在しない場合のエラー。
	ErrParameterNotFound = errors.New("parameter not found")

	// ErrCertificateNotFound は保存済み証明書が存在しない場合のエラー。
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrInvalidCertificate は保存済み証明書をデコードできない場合のエラー。
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrInvalidKeyID は鍵IDの形式が不正な場合のエラー。
	ErrInvalidKeyID = errors.New("invalid key ID")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
