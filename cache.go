package rescache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	defaultTTL   = 24 * time.Hour
	maxSweepLock = 30 * time.Second
)

type cache[V any] struct {
	dir     string
	codec   Codec[V]
	log     Logger
	hooks   Hooks
	enabled bool

	defaultTTL   time.Duration
	ttls         map[string]time.Duration
	maxBytes     int64
	lowWaterFrac float64
	opTimeout    time.Duration

	mem MemTier
	now func() time.Time

	// lock is the single exclusivity lock around every load-modify-save
	// critical section. A 1-slot channel instead of sync.Mutex so that
	// acquisition can honor context deadlines.
	lock chan struct{}

	// Guarded by lock.
	index          *cacheIndex
	orphansCleaned int

	idxStore *indexStore
	entries  *entryStore

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("rescache: Dir is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("rescache: Codec is required")
	}
	// The only fatal error class: an unusable cache directory.
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("rescache: create cache dir %s: %w", opts.Dir, err)
	}

	c := &cache[V]{
		dir:       opts.Dir,
		codec:     opts.Codec,
		enabled:   !opts.Disabled,
		maxBytes:  opts.MaxSizeBytes,
		opTimeout: opts.OpTimeout,
		ttls:      opts.TTLByCategory,
		mem:       opts.MemTier,
		now:       time.Now,
		lock:      make(chan struct{}, 1),
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	c.lowWaterFrac = coalesce[float64](opts.LowWaterFrac, defaultLowWaterFrac)

	c.idxStore = newIndexStore(opts.Dir, c.log)
	c.entries = newEntryStore(opts.Dir)

	var src LoadSource
	c.index, src = c.idxStore.load()
	if src != LoadPrimary {
		c.hooks.IndexRecovered(src.String(), len(c.index.entries))
	}
	c.reconcile()

	if opts.SweepInterval > 0 {
		c.sweepStop = make(chan struct{})
		c.sweepWG.Add(1)
		go c.sweepLoop(opts.SweepInterval)
	}
	return c, nil
}

// reconcile restores the startup invariant that every index row has a file
// and every entry file has a row. Runs before the cache is visible to
// callers, so no locking.
func (c *cache[V]) reconcile() {
	orphanFiles, orphanKeys := c.entries.scanOrphans(c.index)
	for _, f := range orphanFiles {
		if err := c.entries.delete(f); err != nil {
			c.log.Warn("orphan file delete failed", Fields{"file": f, "err": err})
		} else {
			c.log.Info("deleted orphan entry file", Fields{"file": f})
		}
	}
	for _, k := range orphanKeys {
		m := c.index.entries[k]
		delete(c.index.entries, k)
		c.index.totalBytes -= m.SizeBytes
		c.log.Info("dropped index row without file", Fields{"key": k})
	}
	c.orphansCleaned = len(orphanFiles) + len(orphanKeys)
	if c.orphansCleaned > 0 {
		c.hooks.OrphansCleaned(len(orphanFiles), len(orphanKeys))
	}
	if len(orphanKeys) > 0 {
		c.saveIndexLocked()
	}
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if c.sweepStop != nil {
			close(c.sweepStop)
			c.sweepWG.Wait()
		}
	})
	if c.mem != nil {
		return c.mem.Close(ctx)
	}
	return nil
}

// acquire takes the exclusivity lock, giving up when ctx expires. When the
// caller's ctx has no deadline and OpTimeout is configured, OpTimeout caps
// the wait so a wedged disk cannot stall the whole pipeline.
func (c *cache[V]) acquire(ctx context.Context) (func(), error) {
	if c.opTimeout > 0 {
		if _, has := ctx.Deadline(); !has {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opTimeout)
			// The lock, once held, is released by the returned func;
			// ctx is only used while waiting.
			defer cancel()
		}
	}
	select {
	case c.lock <- struct{}{}:
		return func() { <-c.lock }, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

func (c *cache[V]) Get(ctx context.Context, key, category string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	release, err := c.acquire(ctx)
	if err != nil {
		c.log.Warn("get: lock wait timed out, treating as miss", Fields{"key": key})
		return zero, false, nil
	}
	defer release()

	meta, ok := c.index.entries[key]
	if !ok {
		return zero, false, nil
	}

	if c.expired(meta, category) {
		c.removeLocked(ctx, key, meta)
		c.saveIndexLocked()
		c.log.Debug("entry expired", Fields{"key": key, "category": meta.Category})
		return zero, false, nil
	}

	raw, fromMem := c.memGet(ctx, meta.File)
	if !fromMem {
		raw, err = c.entries.read(meta.File)
		if err != nil {
			if err == errEntryMissing {
				delete(c.index.entries, key)
				c.index.totalBytes -= meta.SizeBytes
				c.saveIndexLocked()
				c.hooks.EntrySelfHealed(key, "missing_file")
				c.log.Warn("entry file missing, dropped index row", Fields{"key": key})
			} else {
				// Transient I/O problem: fail open, keep the entry.
				c.log.Warn("entry read failed, treating as miss", Fields{"key": key, "err": err})
			}
			return zero, false, nil
		}
	}

	v, derr := c.codec.Decode(raw)
	if derr != nil {
		c.removeLocked(ctx, key, meta)
		c.saveIndexLocked()
		c.hooks.EntrySelfHealed(key, "decode")
		c.log.Warn("entry undecodable, invalidated", Fields{"key": key, "err": derr})
		return zero, false, nil
	}

	meta.LastAccessed = c.now()
	c.index.entries[key] = meta
	c.saveIndexLocked()
	if !fromMem {
		c.memSet(ctx, meta, raw)
	}
	return v, true, nil
}

func (c *cache[V]) Put(ctx context.Context, key, category string, value V) error {
	if !c.enabled {
		return nil
	}
	// Encode outside the critical section.
	raw, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("rescache: encode %q: %w", key, err)
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	file := c.entries.fileName(key)
	if werr := c.entries.write(file, raw); werr != nil {
		return &PutError{Key: key, EntryErr: werr}
	}

	now := c.now()
	if old, ok := c.index.entries[key]; ok {
		c.index.totalBytes -= old.SizeBytes
	}
	meta := entryMeta{
		Category:     category,
		CreatedAt:    now,
		LastAccessed: now,
		SizeBytes:    int64(len(raw)),
		File:         file,
	}
	c.index.entries[key] = meta
	c.index.totalBytes += meta.SizeBytes

	c.evictLocked(ctx)

	if serr := c.idxStore.save(c.index); serr != nil {
		return &PutError{Key: key, IndexErr: serr}
	}
	c.memSet(ctx, meta, raw)
	return nil
}

func (c *cache[V]) Invalidate(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	meta, ok := c.index.entries[key]
	if !ok {
		return nil
	}
	c.removeLocked(ctx, key, meta)
	return c.idxStore.save(c.index)
}

func (c *cache[V]) Clear(ctx context.Context, category string) (int, error) {
	if !c.enabled {
		return 0, nil
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	count := 0
	for key, meta := range c.index.entries {
		if category != "" && meta.Category != category {
			continue
		}
		c.removeLocked(ctx, key, meta)
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return count, c.idxStore.save(c.index)
}

func (c *cache[V]) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Entries:      make(map[string]int),
		MaxSizeBytes: c.maxBytes,
		Enabled:      c.enabled,
	}
	if !c.enabled {
		return st, nil
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return st, err
	}
	defer release()

	st.TotalBytes = c.index.totalBytes
	st.OrphansCleaned = c.orphansCleaned
	for _, meta := range c.index.entries {
		st.Entries[meta.Category]++
		if c.expired(meta, meta.Category) {
			st.Expired++
		}
		if st.OldestCreated.IsZero() || meta.CreatedAt.Before(st.OldestCreated) {
			st.OldestCreated = meta.CreatedAt
		}
		if st.NewestCreated.IsZero() || meta.CreatedAt.After(st.NewestCreated) {
			st.NewestCreated = meta.CreatedAt
		}
	}
	return st, nil
}

// removeLocked deletes an entry's file, hot-tier copy and index row. The
// caller persists the index.
func (c *cache[V]) removeLocked(ctx context.Context, key string, meta entryMeta) {
	if err := c.entries.delete(meta.File); err != nil {
		c.log.Warn("entry delete failed", Fields{"key": key, "err": err})
	}
	c.memDel(ctx, meta.File)
	delete(c.index.entries, key)
	c.index.totalBytes -= meta.SizeBytes
}

// saveIndexLocked persists the index on paths where a save failure must not
// fail the operation (Get stays fail-open). The failure is logged; the next
// successful mutation rewrites the full index anyway.
func (c *cache[V]) saveIndexLocked() {
	if err := c.idxStore.save(c.index); err != nil {
		c.log.Warn("index save failed", Fields{"err": err})
	}
}

// ttlFor resolves the TTL for a category; categories without explicit
// configuration share DefaultTTL.
func (c *cache[V]) ttlFor(category string) time.Duration {
	if ttl, ok := c.ttls[category]; ok && ttl > 0 {
		return ttl
	}
	return c.defaultTTL
}

// expired checks an entry against the TTL of the category the caller asked
// with; an empty category falls back to the category recorded at Put time.
func (c *cache[V]) expired(meta entryMeta, category string) bool {
	if category == "" {
		category = meta.Category
	}
	return c.now().Sub(meta.CreatedAt) > c.ttlFor(category)
}

func (c *cache[V]) memGet(ctx context.Context, file string) ([]byte, bool) {
	if c.mem == nil {
		return nil, false
	}
	b, ok, err := c.mem.Get(ctx, file)
	if err != nil {
		c.log.Debug("memtier get error", Fields{"file": file, "err": err})
		return nil, false
	}
	return b, ok
}

func (c *cache[V]) memSet(ctx context.Context, meta entryMeta, raw []byte) {
	if c.mem == nil {
		return
	}
	remaining := c.ttlFor(meta.Category) - c.now().Sub(meta.CreatedAt)
	if remaining <= 0 {
		return
	}
	if _, err := c.mem.Set(ctx, meta.File, raw, int64(len(raw)), remaining); err != nil {
		c.log.Debug("memtier set error", Fields{"file": meta.File, "err": err})
	}
}

func (c *cache[V]) memDel(ctx context.Context, file string) {
	if c.mem == nil {
		return
	}
	if err := c.mem.Del(ctx, file); err != nil {
		c.log.Debug("memtier del error", Fields{"file": file, "err": err})
	}
}

// sweepLoop periodically removes expired entries so a quiet cache does not
// hold stale payloads on disk until the next Get touches them.
func (c *cache[V]) sweepLoop(interval time.Duration) {
	defer c.sweepWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.sweepStop:
			return
		}
	}
}

func (c *cache[V]) sweepExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), maxSweepLock)
	defer cancel()
	release, err := c.acquire(ctx)
	if err != nil {
		return
	}
	defer release()

	removed := 0
	for key, meta := range c.index.entries {
		if c.expired(meta, meta.Category) {
			c.removeLocked(ctx, key, meta)
			removed++
		}
	}
	if removed > 0 {
		c.saveIndexLocked()
		c.log.Info("sweep removed expired entries", Fields{"count": removed})
	}
}
