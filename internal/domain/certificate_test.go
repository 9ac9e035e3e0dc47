package domain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestCertificateObjectKey(t *testing.T) {
	if got := CertificateObjectKey("key-1"); got != "key-1/certificate.pem" {
		t.Errorf("want key-1/certificate.pem, got %s", got)
	}
}

func TestValidateKeyID(t *testing.T) {
	tests := []struct {
		name    string
		keyID   string
		wantErr bool
	}{
		{"uuid形式", "1234abcd-12ab-34cd-56ef-1234567890ab", false},
		{"アンダースコア", "doc_signing_key", false},
		{"空文字", "", true},
		{"スラッシュ", "key/../other", true},
		{"空白", "key 1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeyID(tt.keyID)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyID) {
					t.Errorf("want ErrInvalidKeyID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeCertificate(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	notBefore := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(0xabc),
		Subject:      pkix.Name{CommonName: "Test Certificate", Country: []string{"UK"}},
		NotBefore:    notBefore,
		NotAfter:     notBefore.AddDate(0, 0, 365),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	info, err := DecodeCertificate("key-1", pemBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.CommonName != "Test Certificate" || info.Country != "UK" {
		t.Errorf("unexpected subject: CN=%s C=%s", info.CommonName, info.Country)
	}
	if info.SerialNumber != "abc" {
		t.Errorf("want serial abc, got %s", info.SerialNumber)
	}
	if !info.NotBefore.Equal(notBefore) {
		t.Errorf("want not before %v, got %v", notBefore, info.NotBefore)
	}
	if info.PEM != string(pemBytes) {
		t.Error("PEM should be returned as stored")
	}

	if _, err := DecodeCertificate("key-1", []byte("not a certificate")); !errors.Is(err, ErrInvalidCertificate) {
		t.Errorf("want ErrInvalidCertificate, got %v", err)
	}
	csr := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
	if _, err := DecodeCertificate("key-1", csr); !errors.Is(err, ErrInvalidCertificate) {
		t.Errorf("want ErrInvalidCertificate for wrong block type, got %v", err)
	}
}

func TestIssuanceRecord_NeedsReconciliation(t *testing.T) {
	tests := []struct {
		status IssuanceStatus
		arn    string
		want   bool
	}{
		{IssuanceStatusRequested, "arn:cert", true},
		{IssuanceStatusIssued, "arn:cert", true},
		{IssuanceStatusIssued, "", false},
		{IssuanceStatusPersisted, "arn:cert", false},
		{IssuanceStatusFailed, "arn:cert", false},
	}
	for _, tt := range tests {
		r := &IssuanceRecord{Status: tt.status, CertificateARN: tt.arn}
		if got := r.NeedsReconciliation(); got != tt.want {
			t.Errorf("status=%s arn=%q: want %v, got %v", tt.status, tt.arn, tt.want, got)
		}
	}
}
