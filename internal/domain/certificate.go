// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"regexp"
	"time"
)

// CertificateFileName は鍵IDごとの証明書オブジェクト名。
const CertificateFileName = "certificate.pem"

// CertificateObjectKey は鍵IDから証明書の保存先キーを導出する。
// このキーの存在が冪等性マーカーとなる。
func CertificateObjectKey(keyID string) string {
	return keyID + "/" + CertificateFileName
}

var keyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKeyID は外部から指定された鍵IDの形式を検証する。
func ValidateKeyID(keyID string) error {
	if !keyIDPattern.MatchString(keyID) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyID, keyID)
	}
	return nil
}

// IssueRequest はCAへの証明書発行リクエストを表す。
type IssueRequest struct {
	CertificateAuthorityARN string
	CSR                     []byte // PEM形式
	SigningAlgorithm        string // CAが証明書に署名するアルゴリズム名 (例: SHA256WITHECDSA)
	IssuerAlternativeName   string
	ValidityDays            int64
	IdempotencyToken        string
}

// IssuedCertificate は発行済み証明書を表す。
type IssuedCertificate struct {
	KeyID          string
	CertificateARN string
	PEM            string
}

// CertificateInfo は保存済み証明書のデコード結果を表す。
type CertificateInfo struct {
	KeyID        string
	CommonName   string
	Country      string
	Issuer       string
	SerialNumber string
	NotBefore    time.Time
	NotAfter     time.Time
	PEM          string
}

// DecodeCertificate はPEM証明書をデコードする。
func DecodeCertificate(keyID string, pemBytes []byte) (*CertificateInfo, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: no CERTIFICATE block", ErrInvalidCertificate)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	info := &CertificateInfo{
		KeyID:        keyID,
		CommonName:   cert.Subject.CommonName,
		Issuer:       cert.Issuer.String(),
		SerialNumber: cert.SerialNumber.Text(16),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		PEM:          string(pemBytes),
	}
	if len(cert.Subject.Country) > 0 {
		info.Country = cert.Subject.Country[0]
	}
	return info, nil
}
