// Package memtier defines the optional in-memory hot tier in front of the
// disk store. The tier only short-circuits reads: the index and entry files
// on disk stay authoritative, and the facade keeps the tier coherent by
// deleting keys on invalidation, eviction, and self-heal. A tier miss is
// never an error, just a disk read.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte previously passed to Set for a key - no prepended or
// appended metadata, no re-encoding, no mutation.
package memtier

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// Return (nil, false, err) only for real store errors.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure;
	// the facade treats that as a non-event.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
