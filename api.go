package rescache

import (
	"context"
	"time"

	c "github.com/reportkit/rescache/codec"
	mt "github.com/reportkit/rescache/memtier"
)

// Codec re-exports codec.Codec so callers configuring Options need only this
// package plus a codec constructor.
type Codec[V any] = c.Codec[V]

// MemTier re-exports memtier.Provider.
type MemTier = mt.Provider

// Cache is the public surface of the persistent research cache. V is the
// caller's value type; serialization is handled by a pluggable Codec[V].
// All methods are safe for concurrent use from many pipeline workers.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns the cached value for key, or ok=false on a miss. A miss
	// covers: absent key, TTL expired for the entry's category, unreadable
	// or undecodable entry (which is invalidated on the spot), and a lock
	// or I/O timeout. Get fails open: I/O problems degrade to a miss with
	// a nil error. A hit refreshes the entry's last-accessed time.
	//
	// Eviction runs only inside Put's critical section, so a Get observes
	// an entry iff it was still present when the Get acquired the lock;
	// eviction never interleaves with an in-flight read.
	Get(ctx context.Context, key, category string) (v V, ok bool, err error)

	// Put stores value under key. The entry file is written atomically,
	// then the index row is updated and persisted, then the size budget is
	// enforced. Failures surface as *PutError (or ErrTimeout); the pipeline
	// decides whether to proceed without caching.
	Put(ctx context.Context, key, category string, value V) error

	// Invalidate removes key's entry and index row. Absent keys are a no-op.
	Invalidate(ctx context.Context, key string) error

	// Clear deletes all entries, or only those in category when it is
	// non-empty, and returns how many were removed.
	Clear(ctx context.Context, category string) (int, error)

	// Stats reports entry counts per category and aggregate sizes.
	Stats(ctx context.Context) (Stats, error)
}

// Stats is a point-in-time summary of cache contents.
type Stats struct {
	// Entries counts live index rows per category.
	Entries map[string]int
	// TotalBytes is the sum of entry sizes referenced by the index.
	TotalBytes int64
	// Expired counts rows whose TTL has elapsed but which have not been
	// touched (and therefore not yet removed) since expiring.
	Expired int
	// OldestCreated/NewestCreated are zero when the cache is empty.
	OldestCreated time.Time
	NewestCreated time.Time
	// OrphansCleaned is how many orphaned files/rows startup reconciliation
	// removed for this instance.
	OrphansCleaned int
	MaxSizeBytes   int64
	Enabled        bool
}

// Options tune the cache. Dir and Codec are required; everything else has a
// sensible default.
type Options[V any] struct {
	// Dir is the cache directory. Created if absent; failure to create it
	// is the one fatal configuration error.
	Dir   string
	Codec Codec[V]

	// MaxSizeBytes bounds the on-disk footprint. 0 disables eviction.
	MaxSizeBytes int64
	// LowWaterFrac is the fraction of MaxSizeBytes eviction shrinks to,
	// so small follow-up Puts don't immediately re-trigger it. 0 => 0.90.
	LowWaterFrac float64

	// DefaultTTL applies to categories missing from TTLByCategory. 0 => 24h.
	DefaultTTL    time.Duration
	TTLByCategory map[string]time.Duration

	// SweepInterval enables a background pass deleting expired entries.
	// 0 leaves expiry purely lazy (checked on Get).
	SweepInterval time.Duration

	// OpTimeout caps each operation when the caller's ctx has no deadline.
	// 0 means operations wait as long as their ctx allows.
	OpTimeout time.Duration

	// MemTier, when set, is consulted before disk reads and kept coherent
	// on writes, invalidations and evictions.
	MemTier MemTier

	Logger   Logger // nil => NopLogger
	Hooks    Hooks  // nil => NopHooks
	Disabled bool   // all operations become no-ops/misses
}

// New builds a Cache over opts.Dir, recovering the index (primary, then
// backup, then empty) and reconciling orphaned files and rows before
// returning. There must be at most one Cache per directory per process; use
// Shared for the common singleton case.
func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
