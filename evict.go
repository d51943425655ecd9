package rescache

import (
	"context"
	"sort"
)

const defaultLowWaterFrac = 0.90

// evictLocked enforces the size budget after a Put. When total size exceeds
// the budget it removes least-recently-used entries until total size is at or
// below the low-water mark (not just below the budget - the slack keeps a
// stream of small Puts from evicting one entry per call). Ties on
// last-accessed break toward the smaller key so eviction order is
// deterministic.
//
// Caller holds the facade lock and persists the index afterwards.
func (c *cache[V]) evictLocked(ctx context.Context) {
	if c.maxBytes <= 0 || c.index.totalBytes <= c.maxBytes {
		return
	}
	target := int64(float64(c.maxBytes) * c.lowWaterFrac)

	type cand struct {
		key  string
		meta entryMeta
	}
	cands := make([]cand, 0, len(c.index.entries))
	for k, m := range c.index.entries {
		cands = append(cands, cand{key: k, meta: m})
	}
	sort.Slice(cands, func(i, j int) bool {
		ti, tj := cands[i].meta.LastAccessed, cands[j].meta.LastAccessed
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return cands[i].key < cands[j].key
	})

	for _, cd := range cands {
		if c.index.totalBytes <= target {
			break
		}
		if err := c.entries.delete(cd.meta.File); err != nil {
			c.log.Warn("evict: delete failed", Fields{"key": cd.key, "err": err})
		}
		c.memDel(ctx, cd.meta.File)
		delete(c.index.entries, cd.key)
		c.index.totalBytes -= cd.meta.SizeBytes
		c.hooks.EntryEvicted(cd.key, cd.meta.SizeBytes)
		c.log.Info("evicted entry", Fields{
			"key":      cd.key,
			"category": cd.meta.Category,
			"bytes":    cd.meta.SizeBytes,
		})
	}
}
