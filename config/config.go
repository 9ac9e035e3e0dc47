// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"document-signing-certificate-issuer/internal/domain"
)

// Config はアプリケーション設定を表す。
type Config struct {
	// 証明書発行に必須の設定。
	CAArnParameter                 string `envconfig:"PLATFORM_CA_ARN_PARAMETER" required:"true" validate:"required"`
	IssuerAlternativeNameParameter string `envconfig:"PLATFORM_CA_ISSUER_ALTERNATIVE_NAME" required:"true" validate:"required"`
	SigningKeyID                   string `envconfig:"DOC_SIGNING_KEY_ID" required:"true" validate:"required"`
	Bucket                         string `envconfig:"DOC_SIGNING_KEY_BUCKET" required:"true" validate:"required"`
	ValidityPeriodDays             int64  `envconfig:"DOC_SIGNING_KEY_VALIDITY_PERIOD" required:"true" validate:"gt=0"`
	CommonName                     string `envconfig:"DOC_SIGNING_KEY_COMMON_NAME" required:"true" validate:"required"`
	CountryName                    string `envconfig:"DOC_SIGNING_KEY_COUNTRY_NAME" required:"true" validate:"required,len=2,alpha,uppercase"`

	KMSProvider        string `envconfig:"KMS_PROVIDER" default:"aws" validate:"oneof=aws gcp"`
	AWSRegion          string `envconfig:"AWS_REGION"`
	AWSEndpointURL     string `envconfig:"AWS_ENDPOINT_URL"`
	GoogleCloudProject string `envconfig:"GOOGLE_CLOUD_PROJECT"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	Port               string `envconfig:"PORT" default:"8080"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"INFO"`

	OtelEnabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OtelEndpoint     string  `envconfig:"OTEL_ENDPOINT" default:"localhost:4317"`
	OtelServiceName  string  `envconfig:"OTEL_SERVICE_NAME" default:"document-signing-certificate-issuer"`
	OtelSamplingRate float64 `envconfig:"OTEL_SAMPLING_RATE" default:"1.0" validate:"gte=0,lte=1"`
	OtelInsecure     bool    `envconfig:"OTEL_INSECURE" default:"false"`

	// CAのポーリング設定。
	PollInitialInterval time.Duration `envconfig:"POLL_INITIAL_INTERVAL" default:"500ms" validate:"gt=0"`
	PollMaxInterval     time.Duration `envconfig:"POLL_MAX_INTERVAL" default:"5s" validate:"gtefield=PollInitialInterval"`
	PollMaxElapsed      time.Duration `envconfig:"POLL_MAX_ELAPSED" default:"2m" validate:"gt=0"`
	PollMaxAttempts     uint          `envconfig:"POLL_MAX_ATTEMPTS" default:"60" validate:"gt=0"`
}

var validate = validator.New()

// Load は環境変数から設定を読み込む。
// 必須項目の欠落や不正値は domain.ErrConfiguration を返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return &cfg, nil
}
