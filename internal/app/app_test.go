package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-signing-certificate-issuer/config"
)

func testConfig() *config.Config {
	return &config.Config{
		CAArnParameter:                 "/platform-ca/arn",
		IssuerAlternativeNameParameter: "/platform-ca/ian",
		SigningKeyID:                   "key-1",
		Bucket:                         "bucket",
		ValidityPeriodDays:             30,
		CommonName:                     "Test Certificate",
		CountryName:                    "UK",
		KMSProvider:                    "aws",
		AWSRegion:                      "eu-west-2",
		AWSEndpointURL:                 "http://localhost:4566",
		PollInitialInterval:            time.Millisecond,
		PollMaxInterval:                time.Second,
		PollMaxElapsed:                 time.Minute,
		PollMaxAttempts:                3,
	}
}

func TestBuild_WithoutDatabase(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	a, err := Build(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "key-1", a.Issuance.KeyID())
	assert.Nil(t, a.Migrations)
}

func TestBuild_WithSQLiteLedger(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := testConfig()
	cfg.DatabaseURL = "sqlite::memory:"

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Migrations)

	status, err := a.Migrations.GetMigrationStatus(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, status)
	assert.Equal(t, "001", status[0].Version)

	require.NoError(t, a.Close())
}

func TestApp_CloseJoinsErrors(t *testing.T) {
	var order []int
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return errors.New("first") },
		func() error { order = append(order, 2); return nil },
	}}

	err := a.Close()
	assert.EqualError(t, err, "first")
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, a.Close())
}

func TestPollPolicy(t *testing.T) {
	p := PollPolicy(testConfig())
	assert.Equal(t, time.Millisecond, p.InitialInterval)
	assert.Equal(t, uint(3), p.MaxAttempts)
}
