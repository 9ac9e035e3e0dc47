package handler

import (
	"context"
	"errors"
	"os"
	"testing"

	"document-signing-certificate-issuer/config"
	"document-signing-certificate-issuer/internal/domain"
)

// mockIssuer はテスト用のモック。
type mockIssuer struct {
	result *domain.IssuedCertificate
	err    error
	calls  int
}

func (m *mockIssuer) Issue(ctx context.Context) (*domain.IssuedCertificate, error) {
	m.calls++
	return m.result, m.err
}

// countingFactory はファクトリの呼び出し回数とcloseの実行を記録する。
type countingFactory struct {
	issuer *mockIssuer
	err    error
	calls  int
	closed int
}

func (f *countingFactory) build(ctx context.Context, cfg *config.Config) (Issuer, func() error, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.issuer, func() error { f.closed++; return nil }, nil
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PLATFORM_CA_ARN_PARAMETER", "/platform-ca/arn")
	t.Setenv("PLATFORM_CA_ISSUER_ALTERNATIVE_NAME", "/platform-ca/ian")
	t.Setenv("DOC_SIGNING_KEY_ID", "key-1")
	t.Setenv("DOC_SIGNING_KEY_BUCKET", "bucket")
	t.Setenv("DOC_SIGNING_KEY_VALIDITY_PERIOD", "1825")
	t.Setenv("DOC_SIGNING_KEY_COMMON_NAME", "Test Certificate")
	t.Setenv("DOC_SIGNING_KEY_COUNTRY_NAME", "UK")
}

func TestInvocationHandler_MissingBucket(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("DOC_SIGNING_KEY_BUCKET")

	factory := &countingFactory{issuer: &mockIssuer{}}
	h := NewInvocationHandler(factory.build)

	_, err := h.Handle(context.Background(), nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
	if factory.calls != 0 {
		t.Errorf("want no clients built, got %d factory calls", factory.calls)
	}
	if factory.issuer.calls != 0 {
		t.Errorf("want no issuance, got %d calls", factory.issuer.calls)
	}
}

func TestInvocationHandler_Issued(t *testing.T) {
	setRequiredEnv(t)

	issuer := &mockIssuer{result: &domain.IssuedCertificate{KeyID: "key-1", CertificateARN: "arn:cert", PEM: "pem"}}
	factory := &countingFactory{issuer: issuer}
	h := NewInvocationHandler(factory.build)

	result, err := h.Handle(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeIssued {
		t.Errorf("want outcome %s, got %s", OutcomeIssued, result.Outcome)
	}
	if result.CertificateARN != "arn:cert" {
		t.Errorf("want arn:cert, got %s", result.CertificateARN)
	}
	if result.ObjectKey != "key-1/certificate.pem" {
		t.Errorf("want key-1/certificate.pem, got %s", result.ObjectKey)
	}
	if factory.closed != 1 {
		t.Errorf("want clients closed once, got %d", factory.closed)
	}
}

func TestInvocationHandler_AlreadyIssuedIsNotAnError(t *testing.T) {
	setRequiredEnv(t)

	issuer := &mockIssuer{err: domain.ErrCertificateAlreadyIssued}
	h := NewInvocationHandler((&countingFactory{issuer: issuer}).build)

	result, err := h.Handle(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeAlreadyIssued {
		t.Errorf("want outcome %s, got %s", OutcomeAlreadyIssued, result.Outcome)
	}
}

func TestInvocationHandler_Failures(t *testing.T) {
	setRequiredEnv(t)

	issuer := &mockIssuer{err: domain.ErrPersistence}
	factory := &countingFactory{issuer: issuer}
	h := NewInvocationHandler(factory.build)

	if _, err := h.Handle(context.Background(), nil); !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("want ErrPersistence, got %v", err)
	}
	if factory.closed != 1 {
		t.Errorf("want clients closed once, got %d", factory.closed)
	}

	factory = &countingFactory{err: errors.New("no credentials")}
	h = NewInvocationHandler(factory.build)
	if _, err := h.Handle(context.Background(), nil); err == nil {
		t.Error("expected error, got nil")
	}
}
