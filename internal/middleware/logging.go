// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// 監査ログの結果値。
const (
	ResultSuccess = "SUCCESS"
	ResultAborted = "ABORTED"
	ResultFailed  = "FAILED"
)

// WriteAuditLog は証明書操作の監査ログを出力する。args は追加の属性。
func WriteAuditLog(ctx context.Context, operation, keyID, result string, args ...any) {
	attrs := append([]any{
		"operation", operation,
		"keyId", keyID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}, args...)
	slog.InfoContext(ctx, "certificate operation completed", attrs...)
}

// RequestLogger はリクエストごとのアクセスログをslogで出力する。
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", chimiddleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
