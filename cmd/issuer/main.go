// Package main はLambdaで実行する証明書発行のエントリポイント。
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"document-signing-certificate-issuer/config"
	"document-signing-certificate-issuer/internal/app"
	"document-signing-certificate-issuer/internal/handler"
	"document-signing-certificate-issuer/internal/infra"
)

var version = "dev"

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	// ロガーとトレーサーは必須設定の検証前に初期化する。検証は呼び出しごとに行う
	bootstrap := &config.Config{
		LogLevel:           os.Getenv("LOG_LEVEL"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
	}
	if cfg, err := config.Load(); err == nil {
		bootstrap = cfg
	}
	infra.SetupLogger(bootstrap, infra.ParseLevel(bootstrap.LogLevel))

	tp, err := infra.InitTracer(ctx, bootstrap, version)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}

	h := handler.NewInvocationHandler(func(ctx context.Context, cfg *config.Config) (handler.Issuer, func() error, error) {
		a, err := app.Build(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return a.Issuance, a.Close, nil
	})

	var opts []lambda.Option
	if tp != nil {
		opts = append(opts, lambda.WithEnableSIGTERM(func() {
			_ = tp.Shutdown(context.Background())
		}))
	}

	lambda.StartWithOptions(func(ctx context.Context, event json.RawMessage) (*handler.InvocationResult, error) {
		if tp != nil {
			// 実行環境が凍結される前に呼び出しごとのスパンを送信する
			defer func() { _ = tp.ForceFlush(ctx) }()
		}
		return h.Handle(ctx, event)
	}, opts...)
}
