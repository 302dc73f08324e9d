package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/config"
	"github.com/and161185/agrimarket/internal/kv"
	"github.com/and161185/agrimarket/internal/kv/postgres"
	"github.com/and161185/agrimarket/internal/migrate"
)

// openStore builds the configured backend for the API's origin, sealing it when a passphrase is set.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*kv.Store, error) {
	origin := kv.Origin(cfg.APIBaseURL)

	var (
		b   kv.Backend
		err error
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		b = kv.NewMemory()
	case config.BackendFile:
		root := cfg.StoreDir
		if root == "" {
			root = kv.DefaultDir()
		}
		b, err = kv.NewFile(root, origin)
	case config.BackendRedis:
		b, err = kv.NewRedis(ctx, kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, origin)
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.StoreDSN, log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		var db *postgres.DB
		db, err = postgres.Open(ctx, cfg.StoreDSN)
		if err == nil {
			b = postgres.NewBackend(db, origin)
		}
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	if cfg.StorePassphrase != "" {
		sealed, err := kv.NewSealed(ctx, b, cfg.StorePassphrase)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("seal store: %w", err)
		}
		b = sealed
	}
	log.Debug("store opened", zap.String("backend", cfg.StoreBackend), zap.String("origin", origin),
		zap.Bool("sealed", cfg.StorePassphrase != ""))
	return kv.New(b, log), nil
}
