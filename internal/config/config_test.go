package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
http_server:
  address: ":8080"
token:
  security_key: "0123456789abcdef0123456789abcdef"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 2, cfg.DefaultClaimID)
	assert.Equal(t, ":8080", cfg.HTTPServer.Address)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPServer.ShutdownTimeout)
	assert.Equal(t, "identity_service", cfg.Token.Issuer)
	assert.Equal(t, "identity_service", cfg.Token.Audience)
	assert.Equal(t, 10*time.Minute, cfg.Token.AccessTokenExpiration)
	assert.Equal(t, "hmac-sha512", cfg.Hashing.Algorithm)
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
env: prod
storage: memory
default_claim_id: 7
http_server:
  address: "0.0.0.0:9000"
token:
  issuer: "issuer"
  audience: "audience"
  security_key: "0123456789abcdef0123456789abcdef"
  access_token_expiration: 30m
hashing:
  algorithm: argon2id
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 7, cfg.DefaultClaimID)
	assert.Equal(t, "issuer", cfg.Token.Issuer)
	assert.Equal(t, "audience", cfg.Token.Audience)
	assert.Equal(t, 30*time.Minute, cfg.Token.AccessTokenExpiration)
	assert.Equal(t, "argon2id", cfg.Hashing.Algorithm)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
http_server:
  address: ":8080"
token:
  issuer: "from-file"
  security_key: "0123456789abcdef0123456789abcdef"
`)
	t.Setenv("TOKEN_ISSUER", "from-env")
	t.Setenv("DEFAULT_CLAIM_ID", "3")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Token.Issuer)
	assert.Equal(t, 3, cfg.DefaultClaimID)
}

func TestLoadConfig_UnknownStorage(t *testing.T) {
	path := writeConfig(t, `
storage: redis
http_server:
  address: ":8080"
token:
  security_key: "0123456789abcdef0123456789abcdef"
`)

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage")
}

func TestMustLoadConfig_MissingFile(t *testing.T) {
	assert.PanicsWithValue(t, "config file not found", func() {
		MustLoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
