package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"document-signing-certificate-issuer/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *CertificateHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	// ルート定義
	r.Get("/healthz", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/certificate", h.IssueCertificate)
		r.Get("/keys/{key_id}/certificate", h.GetCertificate)
		r.Post("/reconcile", h.Reconcile)
	})

	return otelhttp.NewHandler(r, "document-signing-certificate-issuer")
}
