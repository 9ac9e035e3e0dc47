package pkcs10

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"document-signing-certificate-issuer/internal/domain"
)

// RequestInfo は CertificationRequestInfo を表す。Raw は署名対象のDERで、一度だけ生成される。
type RequestInfo struct {
	Raw        []byte
	Subject    Subject
	PublicKey  *ecdsa.PublicKey
	Extensions []pkix.Extension
}

// Builder は CertificationRequestInfo を組み立てる。
type Builder struct {
	keys PublicKeyFetcher
	alg  SigningAlgorithm
}

// NewBuilder は新しいBuilderを生成する。
func NewBuilder(keys PublicKeyFetcher) *Builder {
	return &Builder{keys: keys, alg: ECDSAWithP256AndSHA256}
}

// Build は鍵IDの公開鍵を取得し、署名対象のDERを生成する。
// 同じ入力とオラクル応答からは常に同じバイト列が得られる。
func (b *Builder) Build(ctx context.Context, subject Subject, keyID string, exts []pkix.Extension) (*RequestInfo, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	spki, err := b.keys.GetPublicKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeyRetrieval, err)
	}
	if len(spki) == 0 {
		return nil, domain.ErrKeyRetrieval
	}

	pub, err := parseECPublicKey(spki, b.alg)
	if err != nil {
		return nil, err
	}

	var cb cryptobyte.Builder
	cb.AddASN1(cbasn1.SEQUENCE, func(cb *cryptobyte.Builder) {
		cb.AddASN1Int64(0) // version
		subject.marshal(cb)
		cb.AddBytes(spki)
		cb.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(cb *cryptobyte.Builder) {
			if len(exts) > 0 {
				marshalExtensionRequest(cb, exts)
			}
		})
	})
	raw, err := cb.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding certification request info: %w", err)
	}

	return &RequestInfo{
		Raw:        raw,
		Subject:    subject,
		PublicKey:  pub,
		Extensions: exts,
	}, nil
}

func parseECPublicKey(spki []byte, alg SigningAlgorithm) (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeyRetrieval, err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is %T, want %s", domain.ErrKeyRetrieval, key, alg.Name)
	}
	if pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve is %s, want %s", domain.ErrKeyRetrieval, pub.Curve.Params().Name, alg.NamedCurve)
	}
	return pub, nil
}
