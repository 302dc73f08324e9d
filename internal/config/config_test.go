package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, rest, err := Parse([]string{"cart", "show"}, env(nil))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, []string{"cart", "show"}, rest)
}

func TestParse_EnvThenFlags(t *testing.T) {
	cfg, rest, err := Parse(
		[]string{"-api", "http://flag.example/api", "-rate", "2.5", "whoami"},
		env(map[string]string{
			"API_BASE_URL":         "http://env.example/api",
			"STORE_BACKEND":        "redis",
			"REDIS_ADDR":           "cache:6379",
			"REDIS_DB":             "3",
			"HTTP_TIMEOUT_SECONDS": "5",
			"API_RATE_LIMIT":       "10",
			"API_RATE_BURST":       "4",
			"STORE_PASSPHRASE":     "s3cret",
			"LOG_LEVEL":            "debug",
		}),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"whoami"}, rest)
	require.Equal(t, "http://flag.example/api", cfg.APIBaseURL)
	require.Equal(t, BackendRedis, cfg.StoreBackend)
	require.Equal(t, "cache:6379", cfg.RedisAddr)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	require.Equal(t, 4, cfg.RateBurst)
	require.Equal(t, "s3cret", cfg.StorePassphrase)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]struct {
		args []string
		env  map[string]string
	}{
		"bad int env":       {env: map[string]string{"REDIS_DB": "x"}},
		"bad timeout env":   {env: map[string]string{"HTTP_TIMEOUT_SECONDS": "soon"}},
		"unknown backend":   {args: []string{"-store", "s3"}},
		"postgres sans dsn": {args: []string{"-store", "postgres"}},
		"negative rate":     {args: []string{"-rate", "-1"}},
		"zero burst":        {env: map[string]string{"API_RATE_BURST": "0"}},
		"bad log level":     {args: []string{"-log-level", "loud"}},
		"unknown flag":      {args: []string{"-nope"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(tc.args, env(tc.env))
			require.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_BACKEND=memory\nAPI_RATE_BURST=7\n"), 0o600))
	// Variables already set win over the file.
	t.Setenv("API_RATE_BURST", "2")
	t.Cleanup(func() { _ = os.Unsetenv("STORE_BACKEND") })

	cfg, _, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, 2, cfg.RateBurst)
}

func TestLoad_MissingDotEnv(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.env"), nil)
	require.NoError(t, err)
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "error"
	log, err := cfg.Logger()
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.WarnLevel))
	require.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}
