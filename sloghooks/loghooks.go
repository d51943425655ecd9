// Package sloghooks logs rescache recovery events through log/slog, with
// sampling for the two events that can fire on hot paths (self-heals and
// evictions).
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/reportkit/rescache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	EvictEvery    uint64
	// Optional key redactor. Defaults to a SHA-256 prefix so semantic keys
	// never land in logs verbatim.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	evictCtr    atomic.Uint64
}

var _ rescache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) IndexRecovered(source string, entries int) {
	if h.l == nil {
		return
	}
	h.l.Warn("rescache.index_recovered",
		"source", source,
		"entries", entries)
}

func (h *Hooks) EntrySelfHealed(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("rescache.entry_self_healed",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) OrphansCleaned(files, rows int) {
	if h.l == nil {
		return
	}
	h.l.Info("rescache.orphans_cleaned",
		"files", files,
		"rows", rows)
}

func (h *Hooks) EntryEvicted(key string, sizeBytes int64) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("rescache.entry_evicted",
		"key", h.redact(key),
		"bytes", sizeBytes)
}

func (h *Hooks) CheckpointGenerationSkipped(runID string, generation uint64, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("rescache.checkpoint_generation_skipped",
		"run", runID,
		"generation", generation,
		"reason", reason)
}
