// Package ristretto adapts dgraph-io/ristretto as a memtier.Provider.
// Ristretto's cost-based admission makes it a good fit for payloads of very
// uneven size: the facade passes the encoded payload length as cost.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

type Config struct {
	// MaxCostBytes bounds the tier's memory (sum of per-entry costs).
	MaxCostBytes int64
	// NumCounters sizes the admission sketch; 0 derives a default from
	// MaxCostBytes assuming ~4KB average entries.
	NumCounters int64
	BufferItems int64
	Metrics     bool
}

type Tier struct {
	c *rc.Cache
}

func New(cfg Config) (*Tier, error) {
	if cfg.MaxCostBytes <= 0 {
		return nil, errors.New("ristretto: MaxCostBytes must be positive")
	}
	counters := cfg.NumCounters
	if counters <= 0 {
		// 10x the expected entry count, per the ristretto docs.
		counters = cfg.MaxCostBytes / 4096 * 10
		if counters < 1024 {
			counters = 1024
		}
	}
	buf := cfg.BufferItems
	if buf <= 0 {
		buf = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: counters,
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: buf,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Tier{c: c}, nil
}

func (t *Tier) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := t.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// unexpected entry shape; drop it
		t.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (t *Tier) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	return t.c.SetWithTTL(key, value, cost, ttl), nil
}

func (t *Tier) Del(_ context.Context, key string) error {
	t.c.Del(key)
	return nil
}

func (t *Tier) Close(_ context.Context) error {
	t.c.Wait()
	t.c.Close()
	return nil
}

// Metrics exposes ristretto's own counters for applications that want them.
func (t *Tier) Metrics() *rc.Metrics { return t.c.Metrics }
