package infra

import (
	"context"
	"crypto/sha256"
	"encoding/pem"
	"fmt"
	"log/slog"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"

	"document-signing-certificate-issuer/internal/pkcs10"
)

// gcpKMSAPI はGCPKMSClientが利用するCloud KMS APIのサブセット。
type gcpKMSAPI interface {
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest, opts ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error)
	Close() error
}

// GCPKMSClient はCloud KMSを署名オラクルとしてラップする。
// 鍵IDには CryptoKeyVersion のリソース名を指定する。
type GCPKMSClient struct {
	client gcpKMSAPI
}

// NewGCPKMSClient は新しいGCPKMSClientを生成する。
func NewGCPKMSClient(ctx context.Context) (*GCPKMSClient, error) {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}
	return &GCPKMSClient{client: client}, nil
}

// GetPublicKey はDER形式のSubjectPublicKeyInfoを返す。
func (c *GCPKMSClient) GetPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	resp, err := c.client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: keyID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to get public key", "operation", "GetPublicKey", "keyId", keyID, "error", err)
		return nil, fmt.Errorf("getting public key: %w", err)
	}
	block, _ := pem.Decode([]byte(resp.Pem))
	if block == nil {
		return nil, fmt.Errorf("getting public key: no PEM block in response")
	}
	return block.Bytes, nil
}

// SignatureFormat はCloud KMSの ECDSA 署名がDER形式であることを示す。
func (c *GCPKMSClient) SignatureFormat() pkcs10.SignatureFormat {
	return pkcs10.SignatureDER
}

// Sign はメッセージのSHA-256ダイジェストをCloud KMSで署名する。
// Cloud KMSはダイジェストのみを受け付けるため、ハッシュはここで計算する。
func (c *GCPKMSClient) Sign(ctx context.Context, keyID string, message []byte, algorithm string) ([]byte, error) {
	if algorithm != "ECDSA_SHA_256" {
		return nil, fmt.Errorf("signing: unsupported algorithm %q", algorithm)
	}
	digest := sha256.Sum256(message)
	resp, err := c.client.AsymmetricSign(ctx, &kmspb.AsymmetricSignRequest{
		Name:   keyID,
		Digest: &kmspb.Digest{Digest: &kmspb.Digest_Sha256{Sha256: digest[:]}},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign", "operation", "AsymmetricSign", "keyId", keyID, "error", err)
		return nil, fmt.Errorf("signing: %w", err)
	}
	return resp.Signature, nil
}

// Close はKMSクライアントを閉じる。
func (c *GCPKMSClient) Close() error {
	return c.client.Close()
}
