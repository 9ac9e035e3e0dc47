package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"document-signing-certificate-issuer/internal/domain"
)

// ssmAPI はSSMParameterStoreが利用するSSM APIのサブセット。
type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMParameterStore はSSM Parameter Storeからの設定値取得を行う。
type SSMParameterStore struct {
	api ssmAPI
}

// NewSSMParameterStore は新しいSSMParameterStoreを生成する。
func NewSSMParameterStore(awsCfg aws.Config) *SSMParameterStore {
	return &SSMParameterStore{api: ssm.NewFromConfig(awsCfg)}
}

// GetParameter はパラメータ値を返す。存在しない・空の場合は domain.ErrParameterNotFound を返す。
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrParameterNotFound, name)
		}
		slog.ErrorContext(ctx, "failed to get parameter", "operation", "GetParameter", "name", name, "error", err)
		return "", fmt.Errorf("getting parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%w: %s has no value", domain.ErrParameterNotFound, name)
	}
	return aws.ToString(out.Parameter.Value), nil
}
