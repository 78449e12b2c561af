package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{"-jwt-secret", "s3cret"}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Addr)
	assert.Equal(t, defaultDBDsn, cfg.DBDsn)
	assert.Equal(t, "migrations", cfg.MigratePath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.FinePerDay)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.Debug)
}

func TestParse_EnvOverridesFlags(t *testing.T) {
	cfg, err := Parse(
		[]string{"-jwt-secret", "flag-secret", "-port", "9000", "-db", "memory://"},
		env(map[string]string{
			"SERVER_PORT":  "9100",
			"JWT_SECRET":   "env-secret",
			"TOKEN_TTL":    "90m",
			"FINE_PER_DAY": "7",
			"DEBUG":        "true",
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, "localhost:9100", cfg.Addr)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, "memory://", cfg.DBDsn)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 7, cfg.FinePerDay)
	assert.True(t, cfg.Debug)
}

func TestParse_FileBelowFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
host: 0.0.0.0
port: 8181
dbDsn: postgres://lms:lms@db:5432/lms?sslmode=disable
jwtSecret: file-secret
tokenTTL: 2h
redisAddr: redis:6379
finePerDay: 3
adminKey: let-me-in
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Parse([]string{"-config", path, "-port", "8282"}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8282", cfg.Addr)
	assert.Equal(t, "postgres://lms:lms@db:5432/lms?sslmode=disable", cfg.DBDsn)
	assert.Equal(t, "file-secret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.FinePerDay)
	assert.Equal(t, "let-me-in", cfg.AdminKey)
}

func TestParse_MissingSecret(t *testing.T) {
	_, err := Parse(nil, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret is required")
}

func TestParse_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "bad port", args: []string{"-jwt-secret", "x"}, env: map[string]string{"SERVER_PORT": "http"}},
		{name: "port out of range", args: []string{"-jwt-secret", "x", "-port", "70000"}},
		{name: "bad ttl", args: []string{"-jwt-secret", "x", "-token-ttl", "forever"}},
		{name: "bad debug", args: []string{"-jwt-secret", "x"}, env: map[string]string{"DEBUG": "sometimes"}},
		{name: "missing file", args: []string{"-jwt-secret", "x", "-config", "/does/not/exist.yaml"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.args, env(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Config{TokenTTL: -time.Second}
	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "jwt secret is required")
	assert.Contains(t, msg, "token ttl must be positive")
	assert.Contains(t, msg, "fine per day must be positive")
	assert.Contains(t, msg, "database dsn is required")
}
