package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_SQLite(t *testing.T) {
	db, err := NewDB("sqlite::memory:", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", db.Dialector.Name())
	require.NoError(t, db.Exec("SELECT 1").Error)
}
