package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `{
  "version": "v1",
  "gateway": {
    "baseURL": "https://grid.example.com",
    "addr": ":8080",
    "upstream": "http://localhost:3000",
    "routes": {
      "/data-fetch": "oauth",
      "/grid": "oauth+scraping"
    },
    "remote": {
      "baseURL": "http://localhost:4000"
    },
    "auth": {
      "signingKey": {"$env": "TEST_SIGNING_KEY"}
    }
  }
}`

func TestLoadResolvesEnvReferences(t *testing.T) {
	t.Setenv("TEST_SIGNING_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "v1", cfg.Version)
	assert.Equal(t, Secret("0123456789abcdef0123456789abcdef"), cfg.Gateway.Auth.SigningKey)
	assert.Equal(t, "https://grid.example.com", cfg.Gateway.BaseURL)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_SIGNING_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "grid-front", cfg.Gateway.Name)
	assert.Equal(t, DefaultLandingRoute, cfg.Gateway.LandingRoute)
	assert.Equal(t, DefaultPollInterval, cfg.Gateway.Poll.Interval)
	assert.Equal(t, DefaultPollInterval, cfg.Gateway.Poll.MaxAge)
	assert.Equal(t, DefaultRemoteTimeout, cfg.Gateway.Remote.Timeout)
	assert.Equal(t, TokenStoreMemory, cfg.Gateway.TokenStore.Kind)
}

func TestLoadRejectsMissingEnvVar(t *testing.T) {
	os.Unsetenv("TEST_SIGNING_KEY_MISSING")
	config := `{
  "version": "v1",
  "gateway": {
    "baseURL": "https://grid.example.com",
    "addr": ":8080",
    "upstream": "http://localhost:3000",
    "routes": {},
    "remote": {"baseURL": "http://localhost:4000"},
    "auth": {"signingKey": {"$env": "TEST_SIGNING_KEY_MISSING"}}
  }
}`

	_, err := Load(writeConfig(t, config))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_SIGNING_KEY_MISSING")
}

func TestLoadRejectsInlineSecrets(t *testing.T) {
	config := `{
  "version": "v1",
  "gateway": {
    "baseURL": "https://grid.example.com",
    "addr": ":8080",
    "upstream": "http://localhost:3000",
    "routes": {},
    "remote": {"baseURL": "http://localhost:4000"},
    "auth": {"signingKey": "inline-secret-not-allowed"}
  }
}`

	_, err := Load(writeConfig(t, config))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment variable reference")
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	_, err := Load(writeConfig(t, `{"version": "v2", "gateway": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version")
}

func TestLoadRequiresVersion(t *testing.T) {
	_, err := Load(writeConfig(t, `{"gateway": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version is required")
}

func TestLoadParsesDurationsAndPolicies(t *testing.T) {
	t.Setenv("TEST_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("TEST_SERVICE_TOKEN", "svc-token")

	config := `{
  "version": "v1",
  "gateway": {
    "baseURL": "https://grid.example.com",
    "addr": ":8080",
    "upstream": "http://localhost:3000",
    "landingRoute": "/home",
    "routes": {"/grid": "oauth+scraping"},
    "remote": {
      "baseURL": "http://localhost:4000",
      "serviceToken": {"$env": "TEST_SERVICE_TOKEN"},
      "timeout": "3s"
    },
    "auth": {"signingKey": {"$env": "TEST_SIGNING_KEY"}},
    "poll": {"interval": "45s", "maxAge": "1m"}
  }
}`

	cfg, err := Load(writeConfig(t, config))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Gateway.Remote.Timeout)
	assert.Equal(t, Secret("svc-token"), cfg.Gateway.Remote.ServiceToken)
	assert.Equal(t, 45*time.Second, cfg.Gateway.Poll.Interval)
	assert.Equal(t, time.Minute, cfg.Gateway.Poll.MaxAge)
	assert.Equal(t, "/home", cfg.Gateway.LandingRoute)
}

func TestLoadHashesStatusPassword(t *testing.T) {
	t.Setenv("TEST_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("TEST_STATUS_PASSWORD", "super-secret")

	config := `{
  "version": "v1",
  "gateway": {
    "baseURL": "https://grid.example.com",
    "addr": ":8080",
    "upstream": "http://localhost:3000",
    "routes": {},
    "remote": {"baseURL": "http://localhost:4000"},
    "auth": {"signingKey": {"$env": "TEST_SIGNING_KEY"}},
    "status": {
      "username": "ops",
      "password": {"$env": "TEST_STATUS_PASSWORD"}
    }
  }
}`

	cfg, err := Load(writeConfig(t, config))
	require.NoError(t, err)

	require.NotNil(t, cfg.Gateway.Status)
	assert.Equal(t, "ops", cfg.Gateway.Status.Username)
	assert.NotEmpty(t, cfg.Gateway.Status.HashedPassword)
	assert.NotContains(t, string(cfg.Gateway.Status.HashedPassword), "super-secret")
}

func TestSecretRedactsItself(t *testing.T) {
	s := Secret("very-secret")
	assert.Equal(t, "***", s.String())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))

	assert.Equal(t, "", Secret("").String())
}
