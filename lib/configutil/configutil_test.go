package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string   `json:"username" validate:"required"`
	Timeout  string   `json:"timeout"`
	Subjects []string `json:"subjects"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vtaccess.json5"), []byte(`{
		// comments are allowed
		username: "hokie",
		timeout: "30s",
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vtaccess.local.json5"), []byte(`{
		timeout: "5s",
		subjects: ["CS"],
	}`), 0600))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "vtaccess.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{Username: "hokie", Timeout: "5s", Subjects: []string{"CS"}}, config)
	require.NoError(t, Validate(config))
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate(testConfig{}))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VTACCESS_TEST_VALUE=from-file\n"), 0600))
	t.Setenv("VTACCESS_TEST_VALUE", "")
	os.Unsetenv("VTACCESS_TEST_VALUE")

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	require.Equal(t, "from-file", EnvOr("VTACCESS_TEST_VALUE", "fallback"))
	require.Equal(t, "fallback", EnvOr("VTACCESS_TEST_UNSET_VALUE", "fallback"))
}
