package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7350", cfg.Server.Address)
	assert.Equal(t, "ws://localhost:7880", cfg.Media.ServerURL)
	assert.Equal(t, "redis", cfg.Presence.Backend)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: "127.0.0.1:9000"
media:
  server_url: "ws://media.internal:7880"
presence:
  backend: http
  url: "http://presence.internal:8080"
identity:
  user_id: "u-1"
  display_name: "Test User"
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, "ws://media.internal:7880", cfg.Media.ServerURL)
	assert.Equal(t, "http", cfg.Presence.Backend)
	assert.Equal(t, "u-1", cfg.Identity.UserID)
	// Untouched values keep defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HARMONY_SERVER_ADDRESS", "127.0.0.1:9100")
	t.Setenv("HARMONY_USER_ID", "env-user")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Address)
	assert.Equal(t, "env-user", cfg.Identity.UserID)
}

func TestValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("http presence requires a url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Presence.Backend = "http"
		cfg.Presence.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown presence backend is rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Presence.Backend = "carrier-pigeon"
		assert.Error(t, cfg.Validate())
	})

	t.Run("local token issuing requires a secret", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Token.URL = ""
		cfg.Token.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("enabled backups require a directory", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backup.Enabled = true
		cfg.Backup.Dir = ""
		assert.Error(t, cfg.Validate())
	})
}
