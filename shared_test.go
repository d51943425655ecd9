package rescache

import (
	"context"
	"sync"
	"testing"
)

func TestSharedSingleInstance(t *testing.T) {
	ctx := context.Background()
	if err := ResetShared(ctx); err != nil {
		t.Fatalf("ResetShared: %v", err)
	}
	t.Cleanup(func() { _ = ResetShared(ctx) })

	cfg := SharedConfig{Dir: t.TempDir()}

	// Racing first accessors must all see the same instance.
	const callers = 16
	insts := make([]Cache[[]byte], callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := Shared(cfg)
			if err != nil {
				t.Errorf("Shared: %v", err)
				return
			}
			insts[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if insts[i] != insts[0] {
			t.Fatalf("caller %d got a different instance", i)
		}
	}

	// State written through one handle is visible through another.
	if err := insts[0].Put(ctx, "k", "cat", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if b, ok, _ := insts[callers-1].Get(ctx, "k", "cat"); !ok || string(b) != "v" {
		t.Fatalf("Get via other handle: ok=%v b=%q", ok, b)
	}
}

func TestResetShared(t *testing.T) {
	ctx := context.Background()
	if err := ResetShared(ctx); err != nil {
		t.Fatalf("ResetShared: %v", err)
	}
	t.Cleanup(func() { _ = ResetShared(ctx) })

	c1, err := Shared(SharedConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Shared: %v", err)
	}
	if err := ResetShared(ctx); err != nil {
		t.Fatalf("ResetShared: %v", err)
	}
	c2, err := Shared(SharedConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Shared after reset: %v", err)
	}
	if c1 == c2 {
		t.Error("ResetShared should force a fresh instance")
	}

	// Resetting an already-reset state is a no-op.
	if err := ResetShared(ctx); err != nil {
		t.Fatalf("ResetShared: %v", err)
	}
	if err := ResetShared(ctx); err != nil {
		t.Fatalf("double ResetShared: %v", err)
	}
}
