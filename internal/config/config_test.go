package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the .env lookup at an empty directory so the
// developer's own configuration does not leak into the tests.
func isolate(t *testing.T) (string, Options) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir, Options{EnvFile: filepath.Join(dir, "missing.env")}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	_, opts := isolate(t)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.Equal(t, BackendFile, cfg.TokenCache.Backend)
	assert.Equal(t, ".token_cache.json", cfg.TokenCache.Path)
	assert.Equal(t, "https://api.duspot.nl/api/products", cfg.Duspot.BaseURL)
	assert.Equal(t, 1, cfg.Duspot.Concurrency)
	assert.Equal(t, "https://app.insert.nl/graphql", cfg.Insert.GraphQLURL)
	assert.Equal(t, FlowDevice, cfg.MatchingMaterials.Flow)
	assert.Equal(t, "common", cfg.MatchingMaterials.Tenant)
}

func TestLoad_File(t *testing.T) {
	dir, opts := isolate(t)
	opts.File = filepath.Join(dir, "matexport.yaml")
	writeFile(t, opts.File, `
log:
  level: debug
  pretty: false
http:
  timeout: 10s
output:
  dir: exports
token_cache:
  backend: redis
  redis_addr: localhost:6379
duspot:
  concurrency: 4
matching_materials:
  flow: client_credentials
  client_id: app-id
  client_secret: s3cret
  scopes:
    - api://matching/.default
`)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "exports", cfg.Output.Dir)
	assert.Equal(t, BackendRedis, cfg.TokenCache.Backend)
	assert.Equal(t, "localhost:6379", cfg.TokenCache.RedisAddr)
	assert.Equal(t, 4, cfg.Duspot.Concurrency)
	assert.Equal(t, FlowClientCredentials, cfg.MatchingMaterials.Flow)
	assert.Equal(t, []string{"api://matching/.default"}, cfg.MatchingMaterials.Scopes)
}

func TestLoad_Environment(t *testing.T) {
	_, opts := isolate(t)
	t.Setenv("MATEXPORT_LOG_LEVEL", "warn")
	t.Setenv("MATEXPORT_DUSPOT_CONCURRENCY", "8")
	t.Setenv("DUSPOT_TOKEN", "jwt-from-env")
	t.Setenv("MM_TENANT", "contoso.onmicrosoft.com")

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Duspot.Concurrency)
	assert.Equal(t, "jwt-from-env", cfg.Duspot.Token)
	assert.Equal(t, "contoso.onmicrosoft.com", cfg.MatchingMaterials.Tenant)
}

func TestLoad_PrefixedCredentialWins(t *testing.T) {
	_, opts := isolate(t)
	t.Setenv("MATEXPORT_DUSPOT_TOKEN", "prefixed")
	t.Setenv("DUSPOT_TOKEN", "plain")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Duspot.Token)
}

func TestLoad_DotEnv(t *testing.T) {
	dir, opts := isolate(t)
	_, set := os.LookupEnv("MM_CLIENT_ID")
	require.False(t, set, "MM_CLIENT_ID must not be set when running this test")
	t.Cleanup(func() { os.Unsetenv("MM_CLIENT_ID") })

	opts.EnvFile = filepath.Join(dir, ".env")
	writeFile(t, opts.EnvFile, "MM_CLIENT_ID=from-dotenv\n")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.MatchingMaterials.ClientID)
}

func TestLoad_Overrides(t *testing.T) {
	_, opts := isolate(t)
	t.Setenv("MATEXPORT_OUTPUT_DIR", "from-env")
	opts.Overrides = map[string]any{
		"output.dir":         "from-flag",
		"duspot.concurrency": 2,
	}

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Output.Dir)
	assert.Equal(t, 2, cfg.Duspot.Concurrency)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "log level", yaml: "log:\n  level: verbose\n"},
		{name: "negative retries", yaml: "http:\n  max_retries: -1\n"},
		{name: "concurrency", yaml: "duspot:\n  concurrency: 0\n"},
		{name: "base url", yaml: "duspot:\n  base_url: not a url\n"},
		{name: "backend", yaml: "token_cache:\n  backend: memcached\n"},
		{name: "redis without addr", yaml: "token_cache:\n  backend: redis\n"},
		{name: "password missing", yaml: "duspot:\n  username: info@example.com\n"},
		{name: "flow", yaml: "matching_materials:\n  flow: browser\n"},
		{name: "unknown key", yaml: "duspot:\n  pages: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, opts := isolate(t)
			opts.File = filepath.Join(dir, "matexport.yaml")
			writeFile(t, opts.File, tt.yaml)

			_, err := Load(opts)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir, opts := isolate(t)
	opts.File = filepath.Join(dir, "nope.yaml")

	_, err := Load(opts)
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Duspot.Token = "jwt"
	cfg.Duspot.Username = "info@example.com"
	cfg.Duspot.Password = "hunter2"
	cfg.MatchingMaterials.ClientSecret = "secret"

	redacted := cfg.Redacted()
	assert.Equal(t, "********", redacted.Duspot.Token)
	assert.Equal(t, "********", redacted.Duspot.Password)
	assert.Equal(t, "info@example.com", redacted.Duspot.Username)
	assert.Equal(t, "********", redacted.MatchingMaterials.ClientSecret)
	assert.Empty(t, redacted.MatchingMaterials.Token)
	assert.Equal(t, "jwt", cfg.Duspot.Token, "receiver must be unchanged")
}
