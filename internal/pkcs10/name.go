package pkcs10

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/bits"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidCommonName       = asn1.ObjectIdentifier{2, 5, 4, 3}
	oidCountry          = asn1.ObjectIdentifier{2, 5, 4, 6}
	oidExtensionRequest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 14}
	oidKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
)

// ErrInvalidSubject はSubjectが不正な場合のエラー。
var ErrInvalidSubject = errors.New("invalid subject")

// Subject はCSRのSubjectを表す。CN, C の順でエンコードされる。
type Subject struct {
	CommonName string
	Country    string
}

// Validate はSubjectを検証する。
func (s Subject) Validate() error {
	if s.CommonName == "" || !utf8.ValidString(s.CommonName) {
		return fmt.Errorf("%w: common name must be non-empty UTF-8", ErrInvalidSubject)
	}
	if len(s.Country) != 2 {
		return fmt.Errorf("%w: country must be a two-letter code", ErrInvalidSubject)
	}
	for i := 0; i < len(s.Country); i++ {
		if c := s.Country[i]; c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: country must be upper-case letters", ErrInvalidSubject)
		}
	}
	return nil
}

// marshal は RDNSequence を挿入順でエンコードする。
func (s Subject) marshal(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addRDN(b, oidCommonName, cbasn1.UTF8String, s.CommonName)
		addRDN(b, oidCountry, cbasn1.PrintableString, s.Country)
	})
}

func addRDN(b *cryptobyte.Builder, oid asn1.ObjectIdentifier, tag cbasn1.Tag, value string) {
	b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oid)
			b.AddASN1(tag, func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(value))
			})
		})
	})
}

// KeyUsageExtension は keyUsage 拡張を生成する。
func KeyUsageExtension(usage x509.KeyUsage, critical bool) (pkix.Extension, error) {
	if usage == 0 || usage >= 1<<9 {
		return pkix.Extension{}, fmt.Errorf("invalid key usage %d", usage)
	}

	bs := []byte{bits.Reverse8(byte(usage)), bits.Reverse8(byte(usage >> 8))}
	if bs[1] == 0 {
		bs = bs[:1]
	}
	bitLength := len(bs)*8 - bits.TrailingZeros8(bs[len(bs)-1])

	value, err := asn1.Marshal(asn1.BitString{Bytes: bs, BitLength: bitLength})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidKeyUsage, Critical: critical, Value: value}, nil
}

// marshalExtensionRequest は PKCS#9 extensionRequest 属性をエンコードする。
func marshalExtensionRequest(b *cryptobyte.Builder, exts []pkix.Extension) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oidExtensionRequest)
		b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				for _, ext := range exts {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(ext.Id)
						if ext.Critical {
							b.AddASN1Boolean(true)
						}
						b.AddASN1OctetString(ext.Value)
					})
				}
			})
		})
	})
}
