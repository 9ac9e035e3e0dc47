package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"document-signing-certificate-issuer/internal/pkcs10"
)

// kmsAPI はAWSKMSClientが利用するKMS APIのサブセット。
type kmsAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// AWSKMSClient はAWS KMSを署名オラクルとしてラップする。秘密鍵はKMSの外に出ない。
type AWSKMSClient struct {
	api kmsAPI
}

// NewAWSKMSClient は新しいAWSKMSClientを生成する。
func NewAWSKMSClient(awsCfg aws.Config) *AWSKMSClient {
	return &AWSKMSClient{api: kms.NewFromConfig(awsCfg)}
}

// GetPublicKey はDER形式のSubjectPublicKeyInfoを返す。
func (c *AWSKMSClient) GetPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	out, err := c.api.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		slog.ErrorContext(ctx, "failed to get public key", "operation", "GetPublicKey", "keyId", keyID, "error", err)
		return nil, fmt.Errorf("getting public key: %w", err)
	}
	return out.PublicKey, nil
}

// SignatureFormat はAWS KMSの ECDSA 署名がDER形式であることを示す。
func (c *AWSKMSClient) SignatureFormat() pkcs10.SignatureFormat {
	return pkcs10.SignatureDER
}

// Sign はメッセージ全体をKMSで署名する。ハッシュ計算はKMS側で行われる。
func (c *AWSKMSClient) Sign(ctx context.Context, keyID string, message []byte, algorithm string) ([]byte, error) {
	out, err := c.api.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyID),
		Message:          message,
		MessageType:      types.MessageTypeRaw,
		SigningAlgorithm: types.SigningAlgorithmSpec(algorithm),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign", "operation", "Sign", "keyId", keyID, "error", err)
		return nil, fmt.Errorf("signing: %w", err)
	}
	return out.Signature, nil
}
