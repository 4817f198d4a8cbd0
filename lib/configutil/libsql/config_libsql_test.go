package configlibsql

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenDBCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "vtaccess.db")
	db, err := Struct{File: path}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
	require.FileExists(t, path)
}

func TestOpenDBRequiresPath(t *testing.T) {
	_, err := Struct{}.OpenDB()
	require.Error(t, err)
}
