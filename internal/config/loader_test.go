package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  baseURL: https://auth.shop.example.com
  scopes: [openid]
  renewal: redirect
gateway:
  preemptive: true
session:
  storage: memory
  checkInterval: 90s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://auth.shop.example.com", cfg.Auth.BaseURL)
	assert.Equal(t, []string{"openid"}, cfg.Auth.Scopes)
	assert.Equal(t, "redirect", cfg.Auth.Renewal)
	assert.True(t, cfg.Gateway.Preemptive)
	assert.Equal(t, "memory", cfg.Session.Storage)
	assert.Equal(t, 90*time.Second, cfg.Session.CheckInterval)

	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultClientID, cfg.Auth.ClientID)
	assert.Equal(t, DefaultExpiringSoon, cfg.Session.ExpiringSoon)
	assert.Equal(t, DefaultGatewayBaseURL, cfg.Gateway.BaseURL)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "auth: [unclosed\n")

	_, err := LoadConfig(path)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "parse", cfgErr.ErrorType)
	assert.Equal(t, path, cfgErr.FilePath)
	assert.Contains(t, cfgErr.DetailedError(), "Suggestions:")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvClientID:   "cli_client",
		EnvScopes:     "openid, api.read api.write",
		EnvPreemptive: "true",
		EnvStorage:    "keyring",
		EnvRenewal:    "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := GetDefaultConfig()
	require.NoError(t, ApplyEnv(&cfg, lookup))

	assert.Equal(t, "cli_client", cfg.Auth.ClientID)
	assert.Equal(t, []string{"openid", "api.read", "api.write"}, cfg.Auth.Scopes)
	assert.True(t, cfg.Gateway.Preemptive)
	assert.Equal(t, "keyring", cfg.Session.Storage)
	assert.Equal(t, DefaultRenewal, cfg.Auth.Renewal, "empty variables are ignored")
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	cfg := GetDefaultConfig()
	err := ApplyEnv(&cfg, func(k string) (string, bool) {
		if k == EnvPreemptive {
			return "sometimes", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "auth:\n  clientID: from_file\n")
	t.Setenv(EnvClientID, "from_env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Auth.ClientID)
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte(EnvClientID+"=from_dotenv\n"+EnvSession+"=work\n"), 0600))
	t.Setenv(EnvClientID, "from_env")
	// Registers cleanup so the variable set by godotenv does not leak.
	t.Setenv(EnvSession, "")
	require.NoError(t, os.Unsetenv(EnvSession))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Auth.ClientID)
	assert.Equal(t, "work", cfg.Session.Name)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
auth:
  baseURL: not-a-url
  clientID: ""
session:
  storage: floppy
`)

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "validation", cfgErr.ErrorType)
	assert.Equal(t, path, cfgErr.FilePath)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*StorefrontConfig)
		field  string
	}{
		{name: "defaults are valid", modify: func(*StorefrontConfig) {}},
		{name: "relative gateway url", modify: func(c *StorefrontConfig) { c.Gateway.BaseURL = "/api" }, field: "gateway.baseURL"},
		{name: "unknown renewal", modify: func(c *StorefrontConfig) { c.Auth.Renewal = "silent" }, field: "auth.renewal"},
		{name: "verifier too short", modify: func(c *StorefrontConfig) { c.Auth.VerifierLength = 42 }, field: "auth.verifierLength"},
		{name: "verifier at minimum", modify: func(c *StorefrontConfig) { c.Auth.VerifierLength = 43 }},
		{name: "verifier too long", modify: func(c *StorefrontConfig) { c.Auth.VerifierLength = 129 }, field: "auth.verifierLength"},
		{name: "zero check interval", modify: func(c *StorefrontConfig) { c.Session.CheckInterval = 0 }, field: "session.checkInterval"},
		{name: "bad log level", modify: func(c *StorefrontConfig) { c.Logging.Level = "loud" }, field: "logging.level"},
		{name: "bad entry url", modify: func(c *StorefrontConfig) { c.App.EntryURL = "ftp://x" }, field: "app.entryURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}
