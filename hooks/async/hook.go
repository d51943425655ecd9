// Package asynchook decouples hook consumers from the cache's critical
// section: events are queued to worker goroutines and dropped when the queue
// is full, so a slow sink can never stall a Put.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := rescache.New[Report](rescache.Options[Report]{
//	    Dir:   cfg.CacheDir,
//	    Codec: codec.JSON[Report]{},
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/reportkit/rescache"
)

type Hooks struct {
	inner rescache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ rescache.Hooks = (*Hooks)(nil)

func New(inner rescache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) IndexRecovered(source string, entries int) {
	h.try(func() { h.inner.IndexRecovered(source, entries) })
}
func (h *Hooks) EntrySelfHealed(key, reason string) {
	h.try(func() { h.inner.EntrySelfHealed(key, reason) })
}
func (h *Hooks) OrphansCleaned(files, rows int) {
	h.try(func() { h.inner.OrphansCleaned(files, rows) })
}
func (h *Hooks) EntryEvicted(key string, sizeBytes int64) {
	h.try(func() { h.inner.EntryEvicted(key, sizeBytes) })
}
func (h *Hooks) CheckpointGenerationSkipped(runID string, generation uint64, reason string) {
	h.try(func() { h.inner.CheckpointGenerationSkipped(runID, generation, reason) })
}
