package usecase

import (
	"bytes"
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"document-signing-certificate-issuer/internal/domain"
	"document-signing-certificate-issuer/internal/pkcs10"
)

var tracer = otel.Tracer("document-signing-certificate-issuer/usecase")

// idempotencyNamespace はCAへの冪等性トークン導出用の名前空間。
var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:document-signing-certificate-issuer"))

// IdempotencyToken は鍵IDから決定的に導出したCA発行リクエストの冪等性トークンを返す。
// failedARN にはこの鍵でCAが発行に失敗した直近の証明書ARNを渡す。空でなければ
// 失敗した要求とは別のトークンになり、再実行でCAが失敗済みのARNを返さない。
func IdempotencyToken(keyID, failedARN string) string {
	name := keyID
	if failedARN != "" {
		name += "\x00" + failedARN
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

// IssuanceConfig は1件の発行に必要な設定。
type IssuanceConfig struct {
	CAArnParameter                 string
	IssuerAlternativeNameParameter string
	KeyID                          string
	ValidityDays                   int64
	Subject                        pkcs10.Subject
}

// ReconcileResult は台帳の突き合わせ結果。
type ReconcileResult struct {
	Checked   int `json:"checked"`
	Persisted int `json:"persisted"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// IssuanceService は文書署名証明書の発行を行う。
type IssuanceService struct {
	cfg     IssuanceConfig
	params  ParameterStore
	store   CertificateStore
	ca      CertificateAuthority
	ledger  IssuanceLedger
	builder *pkcs10.Builder
	signer  *pkcs10.Signer
}

// NewIssuanceService は新しいIssuanceServiceを生成する。ledger が nil の場合は記録しない。
func NewIssuanceService(cfg IssuanceConfig, params ParameterStore, store CertificateStore, oracle SigningOracle, ca CertificateAuthority, ledger IssuanceLedger) *IssuanceService {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &IssuanceService{
		cfg:     cfg,
		params:  params,
		store:   store,
		ca:      ca,
		ledger:  ledger,
		builder: pkcs10.NewBuilder(oracle),
		signer:  pkcs10.NewSigner(oracle),
	}
}

// KeyID は発行対象の鍵IDを返す。
func (s *IssuanceService) KeyID() string {
	return s.cfg.KeyID
}

// Issue は設定された鍵に対して証明書を発行し、保存する。
// 既に証明書が保存されている場合は何も発行せず domain.ErrCertificateAlreadyIssued を返す。
func (s *IssuanceService) Issue(ctx context.Context) (*domain.IssuedCertificate, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.Issue",
		trace.WithAttributes(attribute.String("key.id", s.cfg.KeyID)))
	defer span.End()

	cert, err := s.issue(ctx)
	if err != nil && !errors.Is(err, domain.ErrCertificateAlreadyIssued) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return cert, err
}

func (s *IssuanceService) issue(ctx context.Context) (*domain.IssuedCertificate, error) {
	keyID := s.cfg.KeyID
	objectKey := domain.CertificateObjectKey(keyID)

	caARN, err := s.params.GetParameter(ctx, s.cfg.CAArnParameter)
	if err != nil {
		return nil, s.fail(ctx, "fetching certificate authority ARN", err)
	}
	issuerAltName, err := s.params.GetParameter(ctx, s.cfg.IssuerAlternativeNameParameter)
	if err != nil {
		return nil, s.fail(ctx, "fetching issuer alternative name", err)
	}

	exists, err := s.store.Exists(ctx, objectKey)
	if err != nil {
		return nil, s.fail(ctx, "checking existing certificate", err)
	}
	if exists {
		slog.WarnContext(ctx, domain.LogCertificateAlreadyExists.Message,
			domain.LogCertificateAlreadyExists.Attrs("keyId", keyID, "objectKey", objectKey)...)
		return nil, fmt.Errorf("%w: %s", domain.ErrCertificateAlreadyIssued, objectKey)
	}

	csr, err := s.createCSR(ctx)
	if err != nil {
		return nil, s.fail(ctx, "creating certificate signing request", err)
	}

	certARN, err := s.submit(ctx, caARN, issuerAltName, csr)
	if err != nil {
		return nil, s.fail(ctx, "requesting certificate", err)
	}
	recordID := s.recordRequested(ctx, caARN, certARN)

	pemText, err := s.retrieve(ctx, certARN, caARN)
	if err != nil {
		if errors.Is(err, domain.ErrPollFatal) {
			s.updateLedger(ctx, recordID, domain.IssuanceStatusFailed, err.Error())
		}
		return nil, s.fail(ctx, "retrieving certificate", err, "certificateArn", certARN)
	}
	s.updateLedger(ctx, recordID, domain.IssuanceStatusIssued, "")

	if err := s.persist(ctx, objectKey, pemText); err != nil {
		if errors.Is(err, domain.ErrCertificateAlreadyIssued) {
			// 並行実行が先に保存した。このARNの証明書はCAにのみ残る
			s.updateLedger(ctx, recordID, domain.IssuanceStatusFailed, "superseded by a concurrent issuance")
			slog.WarnContext(ctx, domain.LogCertificateAlreadyExists.Message,
				domain.LogCertificateAlreadyExists.Attrs("keyId", keyID, "objectKey", objectKey, "certificateArn", certARN)...)
			return nil, err
		}
		slog.ErrorContext(ctx, domain.LogCertificatePersistFailed.Message,
			domain.LogCertificatePersistFailed.Attrs("keyId", keyID, "certificateArn", certARN, "objectKey", objectKey, "error", err)...)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrPersistence, certARN, err)
	}
	s.updateLedger(ctx, recordID, domain.IssuanceStatusPersisted, "")

	slog.InfoContext(ctx, domain.LogCertificateIssued.Message,
		domain.LogCertificateIssued.Attrs("keyId", keyID, "certificateArn", certARN, "objectKey", objectKey)...)

	return &domain.IssuedCertificate{
		KeyID:          keyID,
		CertificateARN: certARN,
		PEM:            pemText,
	}, nil
}

// createCSR はオラクル上の鍵でCSRを組み立てて署名する。
func (s *IssuanceService) createCSR(ctx context.Context) (*pkcs10.CertificateRequest, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.createCSR")
	defer span.End()

	keyUsage, err := pkcs10.KeyUsageExtension(x509.KeyUsageDigitalSignature|x509.KeyUsageKeyEncipherment, false)
	if err != nil {
		return nil, err
	}
	info, err := s.builder.Build(ctx, s.cfg.Subject, s.cfg.KeyID, []pkix.Extension{keyUsage})
	if err != nil {
		return nil, err
	}
	return s.signer.Sign(ctx, info, s.cfg.KeyID)
}

func (s *IssuanceService) submit(ctx context.Context, caARN, issuerAltName string, csr *pkcs10.CertificateRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.submit")
	defer span.End()

	return s.ca.IssueCertificate(ctx, domain.IssueRequest{
		CertificateAuthorityARN: caARN,
		CSR:                     csr.PEM(),
		SigningAlgorithm:        s.signer.Algorithm().CAAlgorithm,
		IssuerAlternativeName:   issuerAltName,
		ValidityDays:            s.cfg.ValidityDays,
		IdempotencyToken:        IdempotencyToken(s.cfg.KeyID, s.lastFailedARN(ctx)),
	})
}

func (s *IssuanceService) retrieve(ctx context.Context, certARN, caARN string) (string, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.retrieve",
		trace.WithAttributes(attribute.String("certificate.arn", certARN)))
	defer span.End()

	return s.ca.GetCertificate(ctx, certARN, caARN)
}

func (s *IssuanceService) persist(ctx context.Context, objectKey, pemText string) error {
	ctx, span := tracer.Start(ctx, "IssuanceService.persist")
	defer span.End()

	return s.store.Put(ctx, objectKey, []byte(pemText))
}

// lastFailedARN は直近の発行記録がCAでの失敗であればそのARNを返す。台帳の失敗は無視する。
func (s *IssuanceService) lastFailedARN(ctx context.Context) string {
	latest, err := s.ledger.FindLatestByKeyID(ctx, s.cfg.KeyID)
	if err != nil {
		slog.WarnContext(ctx, "failed to read issuance record", "keyId", s.cfg.KeyID, "error", err)
		return ""
	}
	if latest == nil || latest.Status != domain.IssuanceStatusFailed {
		return ""
	}
	return latest.CertificateARN
}

// fail は発行失敗をメッセージコード付きで記録し、手順名でラップしたエラーを返す。
func (s *IssuanceService) fail(ctx context.Context, step string, err error, args ...any) error {
	attrs := append([]any{"keyId", s.cfg.KeyID, "step", step, "error", err}, args...)
	slog.ErrorContext(ctx, domain.LogCertificateIssueFailed.Message, domain.LogCertificateIssueFailed.Attrs(attrs...)...)
	return fmt.Errorf("%s: %w", step, err)
}

// recordRequested は台帳に発行要求を記録する。台帳の失敗は発行を止めない。
func (s *IssuanceService) recordRequested(ctx context.Context, caARN, certARN string) string {
	record := &domain.IssuanceRecord{
		KeyID:                   s.cfg.KeyID,
		CertificateAuthorityARN: caARN,
		CertificateARN:          certARN,
		Status:                  domain.IssuanceStatusRequested,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		slog.WarnContext(ctx, "failed to record issuance request", "keyId", s.cfg.KeyID, "certificateArn", certARN, "error", err)
		return ""
	}
	return record.ID
}

func (s *IssuanceService) updateLedger(ctx context.Context, id string, status domain.IssuanceStatus, reason string) {
	if id == "" {
		return
	}
	if err := s.ledger.UpdateStatus(ctx, id, status, reason); err != nil {
		slog.WarnContext(ctx, "failed to update issuance record", "id", id, "status", status, "error", err)
	}
}

// Reconcile はCAで発行済みだが保存されていない証明書を取得し直して保存する。
// 個々の記録の失敗はログに残して続行し、一覧取得の失敗のみエラーとして返す。
func (s *IssuanceService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.Reconcile")
	defer span.End()

	records, err := s.ledger.FindPendingReconciliation(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing pending issuances: %w", err)
	}

	result := &ReconcileResult{}
	for _, rec := range records {
		if !rec.NeedsReconciliation() {
			continue
		}
		result.Checked++

		status, reason := s.reconcileRecord(ctx, rec)
		switch status {
		case domain.IssuanceStatusPersisted:
			result.Persisted++
		case domain.IssuanceStatusFailed:
			result.Failed++
		default:
			result.Pending++
		}
		if status != rec.Status {
			s.updateLedger(ctx, rec.ID, status, reason)
		}
	}
	return result, nil
}

func (s *IssuanceService) reconcileRecord(ctx context.Context, rec *domain.IssuanceRecord) (domain.IssuanceStatus, string) {
	objectKey := domain.CertificateObjectKey(rec.KeyID)

	pemText, err := s.ca.GetCertificate(ctx, rec.CertificateARN, rec.CertificateAuthorityARN)
	if err != nil {
		slog.WarnContext(ctx, "failed to retrieve certificate during reconciliation",
			"id", rec.ID, "keyId", rec.KeyID, "certificateArn", rec.CertificateARN, "error", err)
		if errors.Is(err, domain.ErrPollFatal) {
			return domain.IssuanceStatusFailed, err.Error()
		}
		return rec.Status, ""
	}

	err = s.store.Put(ctx, objectKey, []byte(pemText))
	if errors.Is(err, domain.ErrCertificateAlreadyIssued) {
		// 保存済みの内容が同じ証明書なら、台帳の更新だけが漏れていた
		stored, getErr := s.store.Get(ctx, objectKey)
		if getErr == nil && bytes.Equal(bytes.TrimSpace(stored), bytes.TrimSpace([]byte(pemText))) {
			return domain.IssuanceStatusPersisted, ""
		}
		return domain.IssuanceStatusFailed, "a different certificate is already stored for this key"
	}
	if err != nil {
		slog.ErrorContext(ctx, domain.LogCertificatePersistFailed.Message,
			domain.LogCertificatePersistFailed.Attrs("id", rec.ID, "keyId", rec.KeyID, "certificateArn", rec.CertificateARN, "error", err)...)
		return domain.IssuanceStatusIssued, ""
	}

	slog.InfoContext(ctx, domain.LogCertificateReconciled.Message,
		domain.LogCertificateReconciled.Attrs("id", rec.ID, "keyId", rec.KeyID, "certificateArn", rec.CertificateARN, "objectKey", objectKey)...)
	return domain.IssuanceStatusPersisted, ""
}

// CertificateDetails は保存済み証明書と最新の発行記録。
type CertificateDetails struct {
	Certificate  *domain.CertificateInfo
	LastIssuance *domain.IssuanceRecord
}

// GetCertificate は指定された鍵の保存済み証明書をデコードして返す。
func (s *IssuanceService) GetCertificate(ctx context.Context, keyID string) (*CertificateDetails, error) {
	if err := domain.ValidateKeyID(keyID); err != nil {
		return nil, err
	}

	body, err := s.store.Get(ctx, domain.CertificateObjectKey(keyID))
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}
	info, err := domain.DecodeCertificate(keyID, body)
	if err != nil {
		return nil, err
	}

	record, err := s.ledger.FindLatestByKeyID(ctx, keyID)
	if err != nil {
		slog.WarnContext(ctx, "failed to read issuance record", "keyId", keyID, "error", err)
	}
	return &CertificateDetails{Certificate: info, LastIssuance: record}, nil
}
