package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"TokenVault/internal/core"
)

func TestDispatcher_RunsSubmittedWork(t *testing.T) {
	d := core.NewDispatcher(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ran := false
	if err := d.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !ran {
		t.Error("submitted function did not run before Do returned")
	}
}

func TestDispatcher_SerializesConcurrentCallers(t *testing.T) {
	d := core.NewDispatcher(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// A plain int mutated from many goroutines; the dispatcher is the only
	// thing keeping this race-free.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(ctx, func() { counter++ })
		}()
	}
	wg.Wait()

	final := 0
	if err := d.Do(ctx, func() { final = counter }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if final != 50 {
		t.Errorf("counter = %d, want 50", final)
	}
}

func TestDispatcher_DoHonorsContext(t *testing.T) {
	d := core.NewDispatcher(1)
	// Run is never started, so Do can only exit via the context.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Do(ctx, func() {})
	if err == nil {
		t.Fatal("Do returned nil with no dispatcher running")
	}
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	d := core.NewDispatcher(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
