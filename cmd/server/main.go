// Package main は証明書発行APIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"document-signing-certificate-issuer/config"
	"document-signing-certificate-issuer/internal/app"
	"document-signing-certificate-issuer/internal/domain"
	"document-signing-certificate-issuer/internal/handler"
	"document-signing-certificate-issuer/internal/infra"
)

var version = "dev"

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み。不正な場合はクライアントを生成せずに終了する
	cfg, err := config.Load()
	if err != nil {
		slog.Error(domain.LogConfigurationFailed.Message, domain.LogConfigurationFailed.Attrs("error", err)...)
		os.Exit(1)
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg, version)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, infra.ParseLevel(cfg.LogLevel))
	slog.Info(domain.LogConfigurationSuccess.Message, domain.LogConfigurationSuccess.Attrs(
		"keyId", cfg.SigningKeyID,
		"bucket", cfg.Bucket,
		"kmsProvider", cfg.KMSProvider,
		"ledger", cfg.DatabaseURL != "",
	)...)

	// DI
	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close clients", "error", err)
		}
	}()

	// 台帳が有効な場合は未適用のマイグレーションを適用してから受け付ける
	if a.Migrations != nil {
		applied, err := a.Migrations.ApplyMigrations(ctx)
		if err != nil {
			slog.Error("failed to apply ledger migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("ledger schema is up to date", "applied", applied)
	}

	h := handler.NewCertificateHandler(a.Issuance)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info(domain.LogIssuerStarted.Message, domain.LogIssuerStarted.Attrs("port", cfg.Port, "version", version)...)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
