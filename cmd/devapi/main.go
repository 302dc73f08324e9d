// Command devapi serves an in-memory, seeded agrimarket API for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/crypto"
	"github.com/and161185/agrimarket/internal/devapi"
	"github.com/and161185/agrimarket/internal/limiter"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main seeds the dev API and serves it until interrupted.
func main() {
	addr := flag.String("addr", ":8000", "listen address")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (random per process when empty)")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token TTL")
	refreshTTL := flag.Duration("refresh-ttl", 24*time.Hour, "refresh token TTL")
	maxFails := flag.Int("max-login-fails", 5, "failed logins before a temporary lockout")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	key := []byte(*jwtKey)
	if len(key) == 0 {
		k, err := crypto.RandBytes(32)
		if err != nil {
			logger.Fatal("signing key", zap.Error(err))
		}
		key = k
	}
	srv := devapi.New(devapi.Options{
		Logger:     logger,
		SigningKey: key,
		AccessTTL:  *accessTTL,
		RefreshTTL: *refreshTTL,
		Limiter:    limiter.NewMemory(15*time.Minute, *maxFails, 15*time.Minute),
	})
	if err := srv.Seed(); err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
	logger.Info("seeded demo accounts", zap.Strings("users", []string{"tanaka_farm", "sato_orchard", "shopper"}),
		zap.String("password", devapi.DemoPassword))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutCtx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = hs.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
