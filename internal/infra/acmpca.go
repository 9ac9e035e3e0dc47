package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acmpca"
	"github.com/aws/aws-sdk-go-v2/service/acmpca/types"
	"github.com/cenkalti/backoff/v5"

	"document-signing-certificate-issuer/internal/domain"
)

const (
	// PassthroughTemplateARN はCSRとAPIパススルーの拡張をそのまま使うエンドエンティティテンプレート。
	PassthroughTemplateARN = "arn:aws:acm-pca:::template/BlankEndEntityCertificate_APIPassthrough/V1"
	// MDLDocumentSignerEKU はISO/IEC 18013-5 のmDL文書署名者用拡張鍵用途。
	MDLDocumentSignerEKU = "1.0.18013.5.1.2"
	// IssuerAlternativeNameOID は発行者別名拡張のOID。
	IssuerAlternativeNameOID = "2.5.29.18"
)

// pcaAPI はPCAClientが利用するACM PCA APIのサブセット。
type pcaAPI interface {
	IssueCertificate(ctx context.Context, params *acmpca.IssueCertificateInput, optFns ...func(*acmpca.Options)) (*acmpca.IssueCertificateOutput, error)
	GetCertificate(ctx context.Context, params *acmpca.GetCertificateInput, optFns ...func(*acmpca.Options)) (*acmpca.GetCertificateOutput, error)
}

// PollPolicy は証明書取得のポーリング上限を表す。
type PollPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	MaxAttempts     uint
}

// DefaultPollPolicy はデフォルトのポーリング設定。
var DefaultPollPolicy = PollPolicy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsed:      2 * time.Minute,
	MaxAttempts:     60,
}

// PCAClient はAWS Private CAへの発行と取得を行う。
type PCAClient struct {
	api    pcaAPI
	policy PollPolicy
}

// NewPCAClient は新しいPCAClientを生成する。
func NewPCAClient(awsCfg aws.Config, policy PollPolicy) *PCAClient {
	return &PCAClient{api: acmpca.NewFromConfig(awsCfg), policy: policy}
}

// IssueCertificate はCSRをCAに提出し、発行待ち証明書のARNを返す。
func (c *PCAClient) IssueCertificate(ctx context.Context, req domain.IssueRequest) (string, error) {
	input := &acmpca.IssueCertificateInput{
		CertificateAuthorityArn: aws.String(req.CertificateAuthorityARN),
		Csr:                     req.CSR,
		SigningAlgorithm:        types.SigningAlgorithm(req.SigningAlgorithm),
		TemplateArn:             aws.String(PassthroughTemplateARN),
		Validity: &types.Validity{
			Type:  types.ValidityPeriodTypeDays,
			Value: aws.Int64(req.ValidityDays),
		},
		ApiPassthrough: &types.ApiPassthrough{
			Extensions: &types.Extensions{
				KeyUsage: &types.KeyUsage{DigitalSignature: true},
				ExtendedKeyUsage: []types.ExtendedKeyUsage{
					{ExtendedKeyUsageObjectIdentifier: aws.String(MDLDocumentSignerEKU)},
				},
				CustomExtensions: []types.CustomExtension{
					{
						ObjectIdentifier: aws.String(IssuerAlternativeNameOID),
						Value:            aws.String(req.IssuerAlternativeName),
					},
				},
			},
		},
	}
	if req.IdempotencyToken != "" {
		input.IdempotencyToken = aws.String(req.IdempotencyToken)
	}

	out, err := c.api.IssueCertificate(ctx, input)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue certificate", "operation", "IssueCertificate", "caArn", req.CertificateAuthorityARN, "error", err)
		return "", fmt.Errorf("%w: %v", domain.ErrIssuanceRequest, err)
	}
	if out.CertificateArn == nil || *out.CertificateArn == "" {
		return "", fmt.Errorf("%w: no certificate ARN returned", domain.ErrIssuanceRequest)
	}
	return *out.CertificateArn, nil
}

// GetCertificate は証明書が利用可能になるまでポーリングし、PEMを返す。
// RequestInProgressException のみ再試行し、それ以外のエラーは即座に返す。
func (c *PCAClient) GetCertificate(ctx context.Context, certificateARN, caARN string) (string, error) {
	attempts := 0
	operation := func() (string, error) {
		attempts++
		out, err := c.api.GetCertificate(ctx, &acmpca.GetCertificateInput{
			CertificateArn:          aws.String(certificateARN),
			CertificateAuthorityArn: aws.String(caARN),
		})
		if err != nil {
			var inProgress *types.RequestInProgressException
			if errors.As(err, &inProgress) {
				slog.DebugContext(ctx, "certificate not ready", "certificateArn", certificateARN, "attempt", attempts)
				return "", domain.ErrPollTransient
			}
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			return "", backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrPollFatal, err))
		}
		if out.Certificate == nil || *out.Certificate == "" {
			return "", backoff.Permanent(fmt.Errorf("%w: empty certificate", domain.ErrPollFatal))
		}
		return *out.Certificate, nil
	}

	pem, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.exponentialBackOff()),
		backoff.WithMaxElapsedTime(c.policy.MaxElapsed),
		backoff.WithMaxTries(c.policy.MaxAttempts),
	)
	if err == nil {
		return pem, nil
	}
	if errors.Is(err, domain.ErrPollFatal) {
		slog.ErrorContext(ctx, "failed to get certificate", "operation", "GetCertificate", "certificateArn", certificateARN, "attempts", attempts, "error", err)
		return "", err
	}
	slog.ErrorContext(ctx, "certificate polling exhausted", "operation", "GetCertificate", "certificateArn", certificateARN, "attempts", attempts, "error", err)
	return "", fmt.Errorf("%w: after %d attempts: %v", domain.ErrPollTimeout, attempts, err)
}

func (c *PCAClient) exponentialBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.InitialInterval
	b.MaxInterval = c.policy.MaxInterval
	return b
}
