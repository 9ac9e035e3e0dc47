package pkcs10

import (
	"context"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"document-signing-certificate-issuer/internal/domain"
)

// CertificateRequest は署名済みのCSRを表す。CAに送信した後は破棄され、保存されない。
type CertificateRequest struct {
	Raw       []byte
	Info      *RequestInfo
	Signature []byte // DER SEQUENCE{r, s}
}

// PEM は "CERTIFICATE REQUEST" PEMブロックを返す。
func (r *CertificateRequest) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: r.Raw})
}

// Signer は署名オラクルでCSRに署名する。
type Signer struct {
	oracle MessageSigner
	alg    SigningAlgorithm
	encode signatureEncoder
	err    error
}

// NewSigner は新しいSignerを生成する。署名値の変換はオラクルが宣言する形式で決まる。
func NewSigner(oracle MessageSigner) *Signer {
	enc, err := encoderFor(ECDSAWithP256AndSHA256, oracle.SignatureFormat())
	return &Signer{oracle: oracle, alg: ECDSAWithP256AndSHA256, encode: enc, err: err}
}

// Algorithm は署名アルゴリズムを返す。
func (s *Signer) Algorithm() SigningAlgorithm {
	return s.alg
}

// Sign は info.Raw をそのままオラクルに渡して署名し、CertificationRequest を組み立てる。
func (s *Signer) Sign(ctx context.Context, info *RequestInfo, keyID string) (*CertificateRequest, error) {
	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureEncoding, s.err)
	}
	raw, err := s.oracle.Sign(ctx, keyID, info.Raw, s.alg.OracleAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSigning, err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrSigning
	}

	sig, ok := s.encode(raw)
	if !ok || len(sig) == 0 {
		return nil, domain.ErrSignatureEncoding
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(info.Raw)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(s.alg.OID())
		})
		b.AddASN1BitString(sig)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding certification request: %w", err)
	}

	return &CertificateRequest{Raw: der, Info: info, Signature: sig}, nil
}
