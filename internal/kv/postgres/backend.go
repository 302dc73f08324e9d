package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/agrimarket/internal/kv"
)

// Backend implements kv.Backend over the kv_entries table for one origin.
type Backend struct {
	db     *DB
	origin string
}

// NewBackend constructs a backend bound to origin.
func NewBackend(db *DB, origin string) *Backend { return &Backend{db: db, origin: origin} }

// Load selects the value for key.
func (b *Backend) Load(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM kv_entries WHERE origin=$1 AND key=$2`
	var v []byte
	if err := b.db.Pool.QueryRow(ctx, q, b.origin, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrMissing
		}
		return nil, err
	}
	return v, nil
}

// Save upserts the value for key.
func (b *Backend) Save(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv_entries (origin, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (origin, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := b.db.Pool.Exec(ctx, q, b.origin, key, value)
	return err
}

// Delete removes key; a missing row is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_entries WHERE origin=$1 AND key=$2`
	_, err := b.db.Pool.Exec(ctx, q, b.origin, key)
	return err
}

// Close closes the pool.
func (b *Backend) Close() error {
	b.db.Close()
	return nil
}
