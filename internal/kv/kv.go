// Package kv is the durable per-origin key-value adapter backing persisted client state.
//
// Values are JSON encoded. Reads never fail: a missing or corrupt value yields the
// caller-supplied default.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Well-known keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyCartItems    = "cartItems"
)

// ErrMissing is returned by backends when a key has no stored value.
var ErrMissing = errors.New("kv: missing")

// Backend stores raw values for a single origin.
type Backend interface {
	// Load returns the stored bytes or ErrMissing.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save stores bytes under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Store wraps a Backend with JSON encoding and synchronous semantics.
type Store struct {
	b       Backend
	log     *zap.Logger
	timeout time.Duration
}

// New constructs a Store. A nil logger disables logging.
func New(b Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{b: b, log: log, timeout: 5 * time.Second}
}

// Close closes the underlying backend.
func (s *Store) Close() error { return s.b.Close() }

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get reads key into a T, returning def when the value is missing or cannot be decoded.
func Get[T any](s *Store, key string, def T) T {
	ctx, cancel := s.ctx()
	defer cancel()

	raw, err := s.b.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMissing) {
			s.log.Warn("kv load failed, using default", zap.String("key", key), zap.Error(err))
		}
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn("kv value corrupt, using default", zap.String("key", key), zap.Error(err))
		return def
	}
	return v
}

// Set stores value under key as JSON.
func Set[T any](s *Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.b.Save(ctx, key, raw)
}

// Remove deletes key.
func (s *Store) Remove(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.b.Delete(ctx, key)
}

// Origin derives a filesystem- and key-safe namespace from an API base URL (scheme+host).
func Origin(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return sanitize(baseURL)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return sanitize(scheme + "_" + u.Host)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
