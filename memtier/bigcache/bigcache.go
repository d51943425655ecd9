// Package bigcache adapts allegro/bigcache as a memtier.Provider. BigCache
// has no per-entry TTL; entries age out with the global LifeWindow, which is
// fine for a hot tier because the facade re-checks TTLs against the index on
// every read.
package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

type Tier struct {
	c *bc.BigCache
}

func New(cfg Config) (*Tier, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Tier{c: c}, nil
}

func (t *Tier) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := t.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (t *Tier) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	return true, t.c.Set(key, value)
}

func (t *Tier) Del(_ context.Context, key string) error {
	return t.c.Delete(key)
}

func (t *Tier) Close(_ context.Context) error {
	return t.c.Close()
}
