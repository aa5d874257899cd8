// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers env vars, .env files, YAML config files and defaults
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

// isolate runs the test in an empty directory with every bound variable blank.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "continue", cfg.UpsertPolicy)
	assert.Equal(t, DefaultPageSize, cfg.FSI.PageSize)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("FSI_URL", "https://fsi.example/api")
	t.Setenv("FSI_API_KEY", "key")
	t.Setenv("EDUMATE_CLIENT_ID", "client")
	t.Setenv("PATRONSYNC_DOMAIN", "org.edu")
	t.Setenv("PATRONSYNC_HTTP_TIMEOUT", "5s")
	t.Setenv("PATRONSYNC_PAGE_SIZE", "20")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://fsi.example/api", cfg.FSI.URL)
	assert.Equal(t, "key", cfg.FSI.APIKey)
	assert.Equal(t, "client", cfg.Edumate.ClientID)
	assert.Equal(t, "org.edu", cfg.Domain)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 20, cfg.FSI.PageSize)
}

func TestLoadIgnoresUnprefixedKeyNames(t *testing.T) {
	isolate(t)
	t.Setenv("DOMAIN", "example.com")
	t.Setenv("DB_PATH", "/tmp/elsewhere.db")
	t.Setenv("UPSERT_POLICY", "abort")
	t.Setenv("HTTP_TIMEOUT", "1s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, "continue", cfg.UpsertPolicy)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)

	t.Setenv("PATRONSYNC_DOMAIN", "kambala.nsw.edu.au")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "kambala.nsw.edu.au", cfg.Domain)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PATRONSYNC_TEST_DOTENV=base\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("PATRONSYNC_TEST_DOTENV=local\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("PATRONSYNC_TEST_DOTENV") })

	_, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", os.Getenv("PATRONSYNC_TEST_DOTENV"), ".env.local overrides .env")
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	yaml := `fsi:
  url: https://fsi.example/api
  api_secret: shh
edumate:
  auth_url: https://edumate.example/token
domain: org.edu
upsert_policy: abort
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))
	t.Setenv("PATRONSYNC_DOMAIN", "env.edu")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "https://fsi.example/api", cfg.FSI.URL)
	assert.Equal(t, "shh", cfg.FSI.APISecret)
	assert.Equal(t, "https://edumate.example/token", cfg.Edumate.AuthURL)
	assert.Equal(t, "abort", cfg.UpsertPolicy)
	assert.Equal(t, "env.edu", cfg.Domain, "environment wins over the config file")
}

func TestLoadDiscoversConfigFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patronsync.yaml"), []byte("domain: found.edu\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "found.edu", cfg.Domain)
	assert.NotEmpty(t, cfg.ConfigFile)
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := &Config{FSI: FSIConfig{URL: "https://fsi.example"}, Edumate: EdumateConfig{ClientID: "id"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingSetting))
	for _, env := range []string{"FSI_API_KEY", "FSI_API_SECRET", "EDUMATE_URL", "EDUMATE_AUTH_URL", "EDUMATE_CLIENT_SECRET"} {
		assert.Contains(t, err.Error(), env)
	}
	assert.NotContains(t, err.Error(), "FSI_URL")
	assert.NotContains(t, err.Error(), "EDUMATE_CLIENT_ID")
}

func TestValidateComplete(t *testing.T) {
	cfg := &Config{
		FSI:     FSIConfig{URL: "u", APIKey: "k", APISecret: "s"},
		Edumate: EdumateConfig{URL: "u", AuthURL: "a", ClientID: "i", ClientSecret: "s"},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidateFSIOnly(t *testing.T) {
	cfg := &Config{FSI: FSIConfig{URL: "u", APIKey: "k", APISecret: "s"}}

	assert.NoError(t, cfg.ValidateFSI())
	assert.Error(t, cfg.Validate())
}
