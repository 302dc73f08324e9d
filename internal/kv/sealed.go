package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/agrimarket/internal/crypto/clientcrypto"
)

const saltKey = ".salt"

// Sealed encrypts values before handing them to the inner backend.
// The per-store salt lives in the inner backend under ".salt" in the clear.
type Sealed struct {
	inner Backend
	key   []byte
}

// NewSealed derives the sealing key from passphrase, creating the salt on first use.
func NewSealed(ctx context.Context, inner Backend, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, errors.New("sealed store: empty passphrase")
	}
	salt, err := inner.Load(ctx, saltKey)
	switch {
	case errors.Is(err, ErrMissing):
		if salt, err = clientcrypto.Rand(clientcrypto.SaltLen); err != nil {
			return nil, err
		}
		if err := inner.Save(ctx, saltKey, salt); err != nil {
			return nil, fmt.Errorf("sealed store: save salt: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("sealed store: load salt: %w", err)
	}
	return &Sealed{inner: inner, key: clientcrypto.DeriveKey([]byte(passphrase), salt)}, nil
}

func (s *Sealed) Load(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := clientcrypto.Open(s.key, []byte(key), sealed)
	if err != nil {
		return nil, fmt.Errorf("sealed store: open %q: %w", key, err)
	}
	return plain, nil
}

func (s *Sealed) Save(ctx context.Context, key string, value []byte) error {
	sealed, err := clientcrypto.Seal(s.key, []byte(key), value)
	if err != nil {
		return err
	}
	return s.inner.Save(ctx, key, sealed)
}

func (s *Sealed) Delete(ctx context.Context, key string) error { return s.inner.Delete(ctx, key) }

func (s *Sealed) Close() error { return s.inner.Close() }
