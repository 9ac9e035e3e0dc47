package pkcs10

import (
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// EncodeECDSASignature は長さ 2*size の r‖s 固定長連結を DER SEQUENCE{INTEGER r, INTEGER s} に変換する。
// 長さが合わない場合、または r, s が範囲外の場合は false を返す。
func EncodeECDSASignature(raw []byte, size int) ([]byte, bool) {
	if len(raw) != 2*size {
		return nil, false
	}
	r := new(big.Int).SetBytes(raw[:size])
	s := new(big.Int).SetBytes(raw[size:])
	return marshalSignature(r, s, size)
}

// NormalizeDERSignature はDER形式のECDSA署名を検証し、最小長のDERに再エンコードする。
// DERとして厳密に読めない場合、または r, s が範囲外の場合は false を返す。
func NormalizeDERSignature(raw []byte, size int) ([]byte, bool) {
	r, s, ok := parseDERSignature(raw)
	if !ok {
		return nil, false
	}
	return marshalSignature(r, s, size)
}

func parseDERSignature(raw []byte) (*big.Int, *big.Int, bool) {
	input := cryptobyte.String(raw)
	var inner cryptobyte.String
	r, s := new(big.Int), new(big.Int)
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, nil, false
	}
	if !inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, nil, false
	}
	return r, s, true
}

func marshalSignature(r, s *big.Int, size int) ([]byte, bool) {
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, false
	}
	if r.BitLen() > size*8 || s.BitLen() > size*8 {
		return nil, false
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, false
	}
	return out, true
}
