// Package store provides the key-value storage layer for plan documents
// with a Redis backend.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested key does not exist in the store.
	ErrNotFound = errors.New("key not found")
)

// Store is the key-value interface the plan service depends on. It is
// injected at construction time so tests can run against an in-process
// Redis (miniredis) instead of a live server.
type Store interface {
	// Get returns the stored bytes for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, creating or overwriting it.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Returns ErrNotFound if nothing was deleted.
	Delete(ctx context.Context, key string) error
}
