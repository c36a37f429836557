// Package kv defines the durable key-value contract the account store
// persists through. The directory and the session pointer are stored as two
// named records, so the interface is deliberately small: implementations only
// need atomic whole-record reads and writes.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound indicates the requested record does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Store is a durable key-value record store.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	// The write is durable before Put returns.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}
