package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PIEXI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "missing config file should not be an error")

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 6000, cfg.TokenBudget)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
provider: remote
endpoint: https://api.piexi.example
api_key: secret
token_budget: 1200
blocked_domains:
  - "*.internal.example"
data_dir: /tmp/piexi-test
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderRemote, cfg.Provider)
	assert.Equal(t, "https://api.piexi.example", cfg.Endpoint)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 1200, cfg.TokenBudget)
	assert.Equal(t, []string{"*.internal.example"}, cfg.BlockedDomains)
	assert.Equal(t, filepath.Join("/tmp/piexi-test", "tabs.json"), cfg.TabsPath())
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("PIEXI_API_KEY", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestValidate(t *testing.T) {
	t.Run("remote requires endpoint", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider: remote\n"), 0600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider: carrier-pigeon\n"), 0600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed\n"), 0600))

		_, err := Load(path)
		assert.Error(t, err)
	})
}
