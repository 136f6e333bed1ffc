package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyDerivation matches every *KeyDerivationError.
var ErrKeyDerivation = errors.New("cache: key derivation failed")

// Store is the interface for caching completed computation results.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Expiry: Get never returns an entry whose expiry has passed.
// - Errors: Get never errors; it returns (nil, false) on miss.
type Store interface {
	// Get retrieves a live value and records a hit or miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Put stores a value unconditionally; it expires at now+ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Sweep removes every expired entry and returns how many were removed.
	Sweep() int

	// Clear removes all entries. Hit/miss counters are preserved.
	Clear()

	// Stats returns a snapshot of the cache counters.
	Stats() Stats
}
