package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwbyrd/semihost/pkg/policystore"
)

func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Backend.Sandbox.Root = "/tmp/sandbox-root"
	cfg.Auth.Secret = "01234567890123456789012345678901"
	cfg.Policy.Type = policystore.DatabaseTypeSQLite
	cfg.Policy.SQLite.Path = "/tmp/policy.db"
	return cfg
}

func TestLoadWithoutConfigFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":5656", cfg.Transport.ListenAddr)
	assert.Equal(t, BackendSandbox, cfg.Backend.Kind)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
transport:
  listen_addr: "127.0.0.1:7000"
backend:
  kind: sandbox
  sandbox:
    root: "/data/guest"
auth:
  secret: "01234567890123456789012345678901"
policy:
  type: sqlite
  sqlite:
    path: "` + filepath.Join(dir, "policy.db") + `"
`)
	require.NoError(t, os.WriteFile(path, body, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Transport.ListenAddr)
	assert.Equal(t, "/data/guest", cfg.Backend.Sandbox.Root)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := validConfig()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Transport.ListenAddr, loaded.Transport.ListenAddr)
	assert.Equal(t, cfg.Backend.Sandbox.Root, loaded.Backend.Sandbox.Root)
}

func TestGetDefaultConfigPathUsesXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/semihostd/config.yaml", GetDefaultConfigPath())
}

func TestDefaultConfigExistsFalseWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, DefaultConfigExists())
}
