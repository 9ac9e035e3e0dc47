// Package handler はHTTPおよびLambdaのハンドラを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"document-signing-certificate-issuer/internal/domain"
	"document-signing-certificate-issuer/internal/middleware"
	"document-signing-certificate-issuer/internal/usecase"
	"document-signing-certificate-issuer/pkg/httputil"
)

// CertificateService はハンドラが利用する発行ユースケース。
type CertificateService interface {
	KeyID() string
	Issue(ctx context.Context) (*domain.IssuedCertificate, error)
	Reconcile(ctx context.Context) (*usecase.ReconcileResult, error)
	GetCertificate(ctx context.Context, keyID string) (*usecase.CertificateDetails, error)
}

// CertificateHandler は証明書APIのHTTPハンドラ。
type CertificateHandler struct {
	service CertificateService
}

// NewCertificateHandler は新しいCertificateHandlerを生成する。
func NewCertificateHandler(service CertificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

// IssueResponse は発行結果のレスポンス形式。
type IssueResponse struct {
	KeyID          string `json:"key_id"`
	CertificateARN string `json:"certificate_arn"`
	ObjectKey      string `json:"object_key"`
	CertificatePEM string `json:"certificate_pem"`
}

// IssuanceResponse は最新の発行記録のレスポンス形式。
type IssuanceResponse struct {
	CertificateARN string `json:"certificate_arn"`
	Status         string `json:"status"`
	FailureReason  string `json:"failure_reason,omitempty"`
	UpdatedAt      string `json:"updated_at"`
}

// CertificateResponse は保存済み証明書のレスポンス形式。
type CertificateResponse struct {
	KeyID          string            `json:"key_id"`
	CommonName     string            `json:"common_name"`
	Country        string            `json:"country"`
	Issuer         string            `json:"issuer"`
	SerialNumber   string            `json:"serial_number"`
	NotBefore      string            `json:"not_before"`
	NotAfter       string            `json:"not_after"`
	CertificatePEM string            `json:"certificate_pem"`
	LastIssuance   *IssuanceResponse `json:"last_issuance,omitempty"`
}

// IssueCertificate は設定された鍵の証明書を発行する。
func (h *CertificateHandler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keyID := h.service.KeyID()

	issued, err := h.service.Issue(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCertificateAlreadyIssued) {
			middleware.WriteAuditLog(ctx, "ISSUE_CERTIFICATE", keyID, middleware.ResultAborted)
			httputil.Error(w, http.StatusConflict, "CERTIFICATE_ALREADY_EXISTS", "a certificate already exists for this key")
			return
		}
		middleware.WriteAuditLog(ctx, "ISSUE_CERTIFICATE", keyID, middleware.ResultFailed)
		status, code := issueErrorStatus(err)
		httputil.Error(w, status, code, err.Error())
		return
	}

	middleware.WriteAuditLog(ctx, "ISSUE_CERTIFICATE", keyID, middleware.ResultSuccess, "certificateArn", issued.CertificateARN)
	httputil.JSON(w, http.StatusCreated, IssueResponse{
		KeyID:          issued.KeyID,
		CertificateARN: issued.CertificateARN,
		ObjectKey:      domain.CertificateObjectKey(issued.KeyID),
		CertificatePEM: issued.PEM,
	})
}

func issueErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrPollTimeout):
		return http.StatusGatewayTimeout, "CERTIFICATE_NOT_READY"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "CERTIFICATE_PERSIST_FAILED"
	case errors.Is(err, domain.ErrKeyRetrieval),
		errors.Is(err, domain.ErrSigning),
		errors.Is(err, domain.ErrSignatureEncoding):
		return http.StatusBadGateway, "SIGNING_FAILED"
	case errors.Is(err, domain.ErrIssuanceRequest),
		errors.Is(err, domain.ErrPollFatal):
		return http.StatusBadGateway, "ISSUANCE_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// GetCertificate は保存済み証明書の内容を返す。
func (h *CertificateHandler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keyID := chi.URLParam(r, "key_id")

	details, err := h.service.GetCertificate(ctx, keyID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidKeyID):
			httputil.Error(w, http.StatusBadRequest, "INVALID_KEY_ID", "invalid key ID format")
		case errors.Is(err, domain.ErrCertificateNotFound):
			httputil.Error(w, http.StatusNotFound, "CERTIFICATE_NOT_FOUND", "no certificate stored for this key")
		case errors.Is(err, domain.ErrInvalidCertificate):
			httputil.Error(w, http.StatusUnprocessableEntity, "INVALID_CERTIFICATE", "stored certificate cannot be decoded")
		default:
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	cert := details.Certificate
	resp := CertificateResponse{
		KeyID:          cert.KeyID,
		CommonName:     cert.CommonName,
		Country:        cert.Country,
		Issuer:         cert.Issuer,
		SerialNumber:   cert.SerialNumber,
		NotBefore:      cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:       cert.NotAfter.UTC().Format(time.RFC3339),
		CertificatePEM: cert.PEM,
	}
	if rec := details.LastIssuance; rec != nil {
		resp.LastIssuance = &IssuanceResponse{
			CertificateARN: rec.CertificateARN,
			Status:         string(rec.Status),
			FailureReason:  rec.FailureReason,
			UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Reconcile は未保存の発行済み証明書を保存し直す。
func (h *CertificateHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Reconcile(ctx)
	if err != nil {
		middleware.WriteAuditLog(ctx, "RECONCILE", "", middleware.ResultFailed)
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(ctx, "RECONCILE", "", middleware.ResultSuccess,
		"checked", result.Checked, "persisted", result.Persisted, "failed", result.Failed)
	httputil.JSON(w, http.StatusOK, result)
}

// Health はヘルスチェック応答を返す。
func (h *CertificateHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
