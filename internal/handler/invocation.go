package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"document-signing-certificate-issuer/config"
	"document-signing-certificate-issuer/internal/domain"
	"document-signing-certificate-issuer/internal/middleware"
)

// 呼び出し結果の種別。
const (
	OutcomeIssued        = "issued"
	OutcomeAlreadyIssued = "already_issued"
)

// Issuer は1回の証明書発行を行う。
type Issuer interface {
	Issue(ctx context.Context) (*domain.IssuedCertificate, error)
}

// ServiceFactory は検証済み設定からIssuerを組み立てる。返すcloseFnは呼び出し終了時に実行される。
type ServiceFactory func(ctx context.Context, cfg *config.Config) (issuer Issuer, closeFn func() error, err error)

// InvocationResult はLambda呼び出しの戻り値。
type InvocationResult struct {
	Outcome        string `json:"outcome"`
	KeyID          string `json:"keyId"`
	CertificateARN string `json:"certificateArn,omitempty"`
	ObjectKey      string `json:"objectKey"`
}

// InvocationHandler は1回の呼び出しにつき1件の発行を行うLambdaハンドラ。
// 設定の検証に失敗した場合はクライアントを一切生成しない。
type InvocationHandler struct {
	loadConfig func() (*config.Config, error)
	factory    ServiceFactory
}

// NewInvocationHandler は新しいInvocationHandlerを生成する。
func NewInvocationHandler(factory ServiceFactory) *InvocationHandler {
	return &InvocationHandler{loadConfig: config.Load, factory: factory}
}

// Handle はイベントの内容に関わらず設定された鍵の証明書を発行する。
// 既に発行済みの場合は想定内の結果としてエラーを返さない。
func (h *InvocationHandler) Handle(ctx context.Context, _ json.RawMessage) (*InvocationResult, error) {
	slog.InfoContext(ctx, domain.LogIssuerStarted.Message, domain.LogIssuerStarted.Attrs()...)

	cfg, err := h.loadConfig()
	if err != nil {
		slog.ErrorContext(ctx, domain.LogConfigurationFailed.Message,
			domain.LogConfigurationFailed.Attrs("error", err)...)
		return nil, err
	}
	slog.InfoContext(ctx, domain.LogConfigurationSuccess.Message, domain.LogConfigurationSuccess.Attrs(
		"keyId", cfg.SigningKeyID,
		"bucket", cfg.Bucket,
		"caArnParameter", cfg.CAArnParameter,
		"validityDays", cfg.ValidityPeriodDays,
		"kmsProvider", cfg.KMSProvider,
		"ledger", cfg.DatabaseURL != "",
	)...)

	issuer, closeFn, err := h.factory(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, domain.LogCertificateIssueFailed.Message,
			domain.LogCertificateIssueFailed.Attrs("step", "building clients", "error", err)...)
		return nil, err
	}
	defer func() {
		if closeErr := closeFn(); closeErr != nil {
			slog.WarnContext(ctx, "failed to close clients", "error", closeErr)
		}
	}()

	result := &InvocationResult{
		KeyID:     cfg.SigningKeyID,
		ObjectKey: domain.CertificateObjectKey(cfg.SigningKeyID),
	}

	issued, err := issuer.Issue(ctx)
	if errors.Is(err, domain.ErrCertificateAlreadyIssued) {
		middleware.WriteAuditLog(ctx, "ISSUE_CERTIFICATE", cfg.SigningKeyID, middleware.ResultAborted)
		result.Outcome = OutcomeAlreadyIssued
		return result, nil
	}
	if err != nil {
		middleware.WriteAuditLog(ctx, "ISSUE_CERTIFICATE", cfg.SigningKeyID, middleware.ResultFailed)
		return nil, err
	}

	middleware.WriteAuditLog(ctx, "ISSUE_CERTIFICATE", cfg.SigningKeyID, middleware.ResultSuccess,
		"certificateArn", issued.CertificateARN)
	result.Outcome = OutcomeIssued
	result.CertificateARN = issued.CertificateARN
	return result, nil
}
