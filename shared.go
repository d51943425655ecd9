package rescache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/reportkit/rescache/codec"
)

// SharedConfig configures the process-wide cache instance. Values are opaque
// byte payloads (already-validated JSON blobs from the research clients), so
// the shared instance is a Cache[[]byte] over codec.Raw.
type SharedConfig struct {
	Dir           string
	MaxSizeBytes  int64
	DefaultTTL    time.Duration
	TTLByCategory map[string]time.Duration
	SweepInterval time.Duration
	OpTimeout     time.Duration
	MemTier       MemTier
	Logger        Logger
	Hooks         Hooks
	Disabled      bool
}

var (
	sharedMu sync.Mutex
	sharedC  atomic.Pointer[cache[[]byte]]
)

// Shared returns the process-wide cache, constructing it on first call.
// The fast path is a lock-free initialized check; when uninitialized, the
// exclusivity lock is taken and the check repeated (another caller may have
// constructed the instance while this one waited), so exactly one instance
// is ever built under concurrent first access and later calls never contend.
//
// Config matters only on the constructing call; subsequent calls return the
// existing instance regardless of cfg.
func Shared(cfg SharedConfig) (Cache[[]byte], error) {
	if inst := sharedC.Load(); inst != nil {
		return inst, nil
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if inst := sharedC.Load(); inst != nil {
		return inst, nil
	}
	inst, err := newCache[[]byte](Options[[]byte]{
		Dir:           cfg.Dir,
		Codec:         c.Raw{},
		MaxSizeBytes:  cfg.MaxSizeBytes,
		DefaultTTL:    cfg.DefaultTTL,
		TTLByCategory: cfg.TTLByCategory,
		SweepInterval: cfg.SweepInterval,
		OpTimeout:     cfg.OpTimeout,
		MemTier:       cfg.MemTier,
		Logger:        cfg.Logger,
		Hooks:         cfg.Hooks,
		Disabled:      cfg.Disabled,
	})
	if err != nil {
		return nil, err
	}
	sharedC.Store(inst)
	return inst, nil
}

// ResetShared closes and forgets the shared instance so the next Shared call
// constructs a fresh one. Intended for tests and for CLI subcommands that
// reconfigure the cache within one process.
func ResetShared(ctx context.Context) error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	inst := sharedC.Swap(nil)
	if inst == nil {
		return nil
	}
	return inst.Close(ctx)
}
