// Package config resolves client settings from defaults, an optional .env file,
// environment variables and command-line flags, in that order of precedence (last wins).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/agrimarket/internal/api"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the resolved client configuration.
type Config struct {
	APIBaseURL      string
	StoreBackend    string
	StoreDir        string
	StoreDSN        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	StorePassphrase string
	HTTPTimeout     time.Duration
	// RateLimit is requests per second towards the API; 0 disables throttling.
	RateLimit float64
	RateBurst int
	LogLevel  string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIBaseURL:   api.DefaultBaseURL,
		StoreBackend: BackendFile,
		RedisAddr:    "localhost:6379",
		HTTPTimeout:  15 * time.Second,
		RateBurst:    1,
		LogLevel:     "warn",
	}
}

// Load reads envFile (missing is fine), then the process environment, then args.
// It returns the configuration and the arguments left after flag parsing.
func Load(envFile string, args []string) (Config, []string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse(args, os.LookupEnv)
}

// Parse applies lookup (environment) and then args on top of Default.
func Parse(args []string, lookup func(string) (string, bool)) (Config, []string, error) {
	cfg := Default()
	if err := cfg.fromEnv(lookup); err != nil {
		return Config{}, nil, err
	}

	fset := flag.NewFlagSet("agri", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "API base URL")
	fset.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "state store: file|memory|postgres|redis")
	fset.StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "directory of the file store")
	fset.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "PostgreSQL DSN of the postgres store")
	fset.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address")
	fset.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database")
	fset.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	fset.Float64Var(&cfg.RateLimit, "rate", cfg.RateLimit, "max API requests per second (0 = unlimited)")
	fset.IntVar(&cfg.RateBurst, "burst", cfg.RateBurst, "API request burst")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	if err := fset.Parse(args); err != nil {
		return Config{}, nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, fset.Args(), nil
}

func (c *Config) fromEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("API_BASE_URL", &c.APIBaseURL)
	str("STORE_BACKEND", &c.StoreBackend)
	str("STORE_DIR", &c.StoreDir)
	str("STORE_DSN", &c.StoreDSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("STORE_PASSPHRASE", &c.StorePassphrase)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v, ok := lookup("HTTP_TIMEOUT_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_TIMEOUT_SECONDS: %w", err)
		}
		c.HTTPTimeout = time.Duration(n) * time.Second
	}
	if v, ok := lookup("API_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("API_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup("API_RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	return nil
}

// Validate checks value ranges and backend requirements.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile, BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.StoreDSN == "" {
			return errors.New("postgres store needs STORE_DSN or -store-dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.APIBaseURL == "" {
		return errors.New("empty API base URL")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.RateLimit < 0 || c.RateBurst < 1 {
		return fmt.Errorf("bad rate limit %v/%d", c.RateLimit, c.RateBurst)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Logger builds a console logger on stderr at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}
