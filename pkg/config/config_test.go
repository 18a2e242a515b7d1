package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	fileSecret = "from-file-from-file-from-file-0001"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, DataSourceMock, cfg.DataSource.Mode)
	assert.Equal(t, []string{AuditSinkLog}, cfg.Audit.Sinks)
	assert.Equal(t, testSecret, cfg.JWT.SecretKey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFrom_File(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9090
cache:
  backend: lru
  max_entries: 16
  ttl_seconds: 60
jwt:
  secret_key: `+fileSecret+`
log_level: debug
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, CacheBackendLRU, cfg.Cache.Backend)
	assert.Equal(t, 16, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.Cache.TTL())
	assert.Equal(t, fileSecret, cfg.JWT.SecretKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("PORT", "7000")
	t.Setenv("CACHE_BACKEND", "redis")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadFrom_Validation(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "missing jwt secret",
			body: "log_level: info\n",
		},
		{
			name: "placeholder jwt secret",
			body: "jwt:\n  secret_key: change-me\n",
		},
		{
			name: "short jwt secret",
			body: "jwt:\n  secret_key: s3cr3t-but-short\n",
		},
		{
			name: "unknown cache backend",
			body: "jwt:\n  secret_key: " + testSecret + "\ncache:\n  backend: memcached\n",
		},
		{
			name: "remote mode without base url",
			body: "jwt:\n  secret_key: " + testSecret + "\ndata_source:\n  mode: remote\n",
		},
		{
			name: "postgres sink without password",
			body: "jwt:\n  secret_key: " + testSecret + "\naudit:\n  sinks: [log, postgres]\n",
		},
		{
			name: "unknown audit sink",
			body: "jwt:\n  secret_key: " + testSecret + "\naudit:\n  sinks: [syslog]\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_RejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "change-me")
	_, err := LoadFrom(t.TempDir())
	assert.ErrorContains(t, err, "placeholder")

	t.Setenv("JWT_SECRET_KEY", testSecret[:MinJWTSecretLength-1])
	_, err = LoadFrom(t.TempDir())
	assert.ErrorContains(t, err, "at least 32 bytes")

	t.Setenv("JWT_SECRET_KEY", testSecret)
	_, err = LoadFrom(t.TempDir())
	assert.NoError(t, err)
}

func TestAuditConfig_HasSink(t *testing.T) {
	audit := AuditConfig{Sinks: []string{AuditSinkLog, AuditSinkPostgres}}
	assert.True(t, audit.HasSink(AuditSinkPostgres))
	assert.False(t, audit.HasSink("syslog"))
}
