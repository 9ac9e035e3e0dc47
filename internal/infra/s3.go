package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"document-signing-certificate-issuer/internal/domain"
)

// s3API はS3CertificateStoreが利用するS3 APIのサブセット。
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3CertificateStore は発行済み証明書をS3バケットに保存する。
type S3CertificateStore struct {
	api    s3API
	bucket string
}

// NewS3CertificateStore は新しいS3CertificateStoreを生成する。
func NewS3CertificateStore(awsCfg aws.Config, bucket string) *S3CertificateStore {
	return &S3CertificateStore{
		api: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			// LocalStack等のカスタムエンドポイントではパス形式を使う
			o.UsePathStyle = awsCfg.BaseEndpoint != nil
		}),
		bucket: bucket,
	}
}

// Exists はオブジェクトが存在するかを返す。
func (s *S3CertificateStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	slog.ErrorContext(ctx, "failed to head object", "operation", "HeadObject", "bucket", s.bucket, "key", key, "error", err)
	return false, fmt.Errorf("checking object %s: %w", key, err)
}

// Put はオブジェクトが存在しない場合のみ書き込む。
// 既に存在する場合は domain.ErrCertificateAlreadyIssued を返す。
func (s *S3CertificateStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-pem-file"),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		return nil
	}
	if isConditionalWriteConflict(err) {
		return fmt.Errorf("%w: %s", domain.ErrCertificateAlreadyIssued, key)
	}
	slog.ErrorContext(ctx, "failed to put object", "operation", "PutObject", "bucket", s.bucket, "key", key, "error", err)
	return fmt.Errorf("putting object %s: %w", key, err)
}

// Get はオブジェクトの内容を返す。存在しない場合は domain.ErrCertificateNotFound を返す。
func (s *S3CertificateStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCertificateNotFound, key)
		}
		slog.ErrorContext(ctx, "failed to get object", "operation", "GetObject", "bucket", s.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("getting object %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return body, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isConditionalWriteConflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
