package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"document-signing-certificate-issuer/internal/domain"
)

var requiredEnv = map[string]string{
	"PLATFORM_CA_ARN_PARAMETER":           "/platform-ca/iaca/certificate-authority-arn",
	"PLATFORM_CA_ISSUER_ALTERNATIVE_NAME": "/platform-ca/iaca/issuer-alternative-name",
	"DOC_SIGNING_KEY_ID":                  "d6e6c61d-3dc8-4686-8a39-ecdd6f147eb5",
	"DOC_SIGNING_KEY_BUCKET":              "doc-signing-bucket",
	"DOC_SIGNING_KEY_VALIDITY_PERIOD":     "1825",
	"DOC_SIGNING_KEY_COMMON_NAME":         "Test Certificate",
	"DOC_SIGNING_KEY_COUNTRY_NAME":        "UK",
}

// setEnv は必須環境変数を設定し、except に含まれる変数を未設定にする。
func setEnv(t *testing.T, except ...string) {
	t.Helper()
	for k, v := range requiredEnv {
		t.Setenv(k, v)
	}
	for _, k := range except {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Success(t *testing.T) {
	setEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SigningKeyID != "d6e6c61d-3dc8-4686-8a39-ecdd6f147eb5" {
		t.Errorf("want key id, got %s", cfg.SigningKeyID)
	}
	if cfg.ValidityPeriodDays != 1825 {
		t.Errorf("want validity 1825, got %d", cfg.ValidityPeriodDays)
	}
	if cfg.KMSProvider != "aws" {
		t.Errorf("want default kms provider aws, got %s", cfg.KMSProvider)
	}
	if cfg.PollInitialInterval != 500*time.Millisecond {
		t.Errorf("want default poll interval 500ms, got %s", cfg.PollInitialInterval)
	}
	if cfg.PollMaxAttempts != 60 {
		t.Errorf("want default poll attempts 60, got %d", cfg.PollMaxAttempts)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for key := range requiredEnv {
		t.Run(key, func(t *testing.T) {
			setEnv(t, key)

			_, err := Load()
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("want ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DOC_SIGNING_KEY_VALIDITY_PERIOD", "0"},
		{"DOC_SIGNING_KEY_VALIDITY_PERIOD", "abc"},
		{"DOC_SIGNING_KEY_COUNTRY_NAME", "GBR"},
		{"DOC_SIGNING_KEY_COUNTRY_NAME", "uk"},
		{"DOC_SIGNING_KEY_BUCKET", ""},
		{"KMS_PROVIDER", "azure"},
		{"POLL_MAX_ATTEMPTS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("want ErrConfiguration, got %v", err)
			}
		})
	}
}
