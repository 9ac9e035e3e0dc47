// Package app は設定から発行サービスの依存関係を組み立てる。
package app

import (
	"context"
	"errors"
	"fmt"

	"document-signing-certificate-issuer/config"
	"document-signing-certificate-issuer/internal/infra"
	"document-signing-certificate-issuer/internal/pkcs10"
	"document-signing-certificate-issuer/internal/repository"
	"document-signing-certificate-issuer/internal/usecase"
	"document-signing-certificate-issuer/migrations"
)

// App は組み立て済みのサービス群。
type App struct {
	Issuance *usecase.IssuanceService
	// Migrations は DATABASE_URL 未設定の場合 nil。
	Migrations *usecase.MigrationService

	closers []func() error
}

// Build は検証済みの設定から全クライアントを生成してサービスを組み立てる。
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	awsCfg, err := infra.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var oracle usecase.SigningOracle
	switch cfg.KMSProvider {
	case "gcp":
		gcp, err := infra.NewGCPKMSClient(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcp.Close)
		oracle = gcp
	default:
		oracle = infra.NewAWSKMSClient(awsCfg)
	}

	var ledger usecase.IssuanceLedger = usecase.NopLedger{}
	if cfg.DatabaseURL != "" {
		db, err := infra.NewDB(cfg.DatabaseURL, cfg)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connecting to ledger database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		ledger = repository.NewIssuanceRepository(db)
		a.Migrations = usecase.NewMigrationService(repository.NewMigrationRepository(db), migrations.FS)
	}

	a.Issuance = usecase.NewIssuanceService(
		usecase.IssuanceConfig{
			CAArnParameter:                 cfg.CAArnParameter,
			IssuerAlternativeNameParameter: cfg.IssuerAlternativeNameParameter,
			KeyID:                          cfg.SigningKeyID,
			ValidityDays:                   cfg.ValidityPeriodDays,
			Subject: pkcs10.Subject{
				CommonName: cfg.CommonName,
				Country:    cfg.CountryName,
			},
		},
		infra.NewSSMParameterStore(awsCfg),
		infra.NewS3CertificateStore(awsCfg, cfg.Bucket),
		oracle,
		infra.NewPCAClient(awsCfg, PollPolicy(cfg)),
		ledger,
	)
	return a, nil
}

// PollPolicy は設定からポーリング方針を生成する。
func PollPolicy(cfg *config.Config) infra.PollPolicy {
	return infra.PollPolicy{
		InitialInterval: cfg.PollInitialInterval,
		MaxInterval:     cfg.PollMaxInterval,
		MaxElapsed:      cfg.PollMaxElapsed,
		MaxAttempts:     cfg.PollMaxAttempts,
	}
}

// Close は保持しているクライアントを全て閉じる。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
