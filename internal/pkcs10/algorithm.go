// Package pkcs10 は署名オラクル上の鍵に対するPKCS#10証明書署名要求を組み立てる。
//
// 秘密鍵はプロセス内に存在しない。公開鍵の取得と署名はどちらもオラクル呼び出しで行い、
// このパッケージはDER構造の組み立てと署名値の正規化のみを担う。
package pkcs10

import (
	"context"
	"encoding/asn1"
	"fmt"
)

// PublicKeyFetcher は鍵IDに対応するSubjectPublicKeyInfo(DER)を返す。
type PublicKeyFetcher interface {
	GetPublicKey(ctx context.Context, keyID string) ([]byte, error)
}

// SignatureFormat はオラクルが返す署名値の形式。
type SignatureFormat int

const (
	// SignatureDER は DER SEQUENCE{INTEGER r, INTEGER s} (AWS KMS / Cloud KMS)。
	SignatureDER SignatureFormat = iota + 1
	// SignatureRaw は r‖s の固定長連結 (IEEE P1363)。
	SignatureRaw
)

func (f SignatureFormat) String() string {
	switch f {
	case SignatureDER:
		return "DER"
	case SignatureRaw:
		return "raw"
	default:
		return fmt.Sprintf("SignatureFormat(%d)", int(f))
	}
}

// MessageSigner は鍵IDでメッセージに署名する。algorithm はオラクルの署名アルゴリズム名。
// SignatureFormat は Sign が返す署名値の形式を宣言する。
type MessageSigner interface {
	Sign(ctx context.Context, keyID string, message []byte, algorithm string) ([]byte, error)
	SignatureFormat() SignatureFormat
}

// SigningAlgorithm は署名アルゴリズムの組を表す。
type SigningAlgorithm struct {
	Name       string
	NamedCurve string

	// OracleAlgorithm はオラクルの Sign に渡す名前。
	OracleAlgorithm string
	// CAAlgorithm はCAの発行リクエストに渡す名前。
	CAAlgorithm string

	oid asn1.ObjectIdentifier
}

// ECDSAWithP256AndSHA256 はこのシステムが扱う唯一のアルゴリズム。
var ECDSAWithP256AndSHA256 = SigningAlgorithm{
	Name:            "ECDSA",
	NamedCurve:      "P-256",
	OracleAlgorithm: "ECDSA_SHA_256",
	CAAlgorithm:     "SHA256WITHECDSA",
	oid:             asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2},
}

// OID はAlgorithmIdentifierのOIDを返す。
func (a SigningAlgorithm) OID() asn1.ObjectIdentifier {
	return a.oid
}

type encoderKey struct {
	name   string
	curve  string
	format SignatureFormat
}

// signatureEncoder はオラクルの署名値をDERに変換する。変換できなければ false を返す。
type signatureEncoder func(raw []byte) ([]byte, bool)

var signatureEncoders = map[encoderKey]signatureEncoder{
	{name: "ECDSA", curve: "P-256", format: SignatureRaw}: func(raw []byte) ([]byte, bool) {
		return EncodeECDSASignature(raw, 32)
	},
	{name: "ECDSA", curve: "P-256", format: SignatureDER}: func(raw []byte) ([]byte, bool) {
		return NormalizeDERSignature(raw, 32)
	},
}

// encoderFor はアルゴリズムとオラクルの署名形式に対応する唯一の変換を返す。
func encoderFor(alg SigningAlgorithm, format SignatureFormat) (signatureEncoder, error) {
	enc, ok := signatureEncoders[encoderKey{name: alg.Name, curve: alg.NamedCurve, format: format}]
	if !ok {
		return nil, fmt.Errorf("no signature encoder for %s %s (%s)", alg.Name, alg.NamedCurve, format)
	}
	return enc, nil
}
