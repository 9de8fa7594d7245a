package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not present in the shared cache
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore defines the shared cache contract used for run coordination
// and result caching. Implementations must be atomic at single-key
// granularity; the lease manager relies on SetIfAbsent being one atomic
// read-modify-write rather than a separate check and write.
type KeyValueStore interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes a value with a TTL; ttl <= 0 stores without expiry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfAbsent writes the value only when the key does not already exist.
	// Returns true when the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}
