// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across transport/state layers.
var (
	// ErrNotFound indicates the requested entity does not exist on the remote API.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates rejected credentials or an expired/invalid token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport indicates the remote API could not be reached or answered garbage.
	ErrTransport = errors.New("transport failure")

	// ErrValidation indicates the remote API (or a local precondition) rejected input.
	ErrValidation = errors.New("validation failed")

	// ErrInconsistentState indicates local containers disagree with each other.
	ErrInconsistentState = errors.New("inconsistent local state")

	// ErrEmptyCart indicates an order was requested for an empty cart.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
