// Package limiter throttles failed logins on the dev API token endpoint.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks failed logins per (username, client) pair and locks the pair out for a while
// once too many pile up inside a window.
type Limiter interface {
	// Allow reports whether the pair may try to log in, and for how long it stays locked if not.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success forgets the failures of the pair.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure counts one failed attempt and reports whether the pair is now locked.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP keys the client side of a pair without keeping the raw address.
func HashIP(ip string) []byte {
	sum := sha256.Sum256([]byte(ip))
	return sum[:]
}
