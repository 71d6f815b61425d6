package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/regfetch/internal/core/fault"
)

func TestScheduleSerializesOperations(t *testing.T) {
	g := NewGate(1000) // effectively unthrottled; only the lane matters

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Schedule(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			if err != nil {
				t.Errorf("schedule: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("max in-flight = %d, want 1", got)
	}
}

func TestScheduleSpacesOperations(t *testing.T) {
	g := NewGate(50) // 20ms between tokens

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := g.Schedule(context.Background(), func(ctx context.Context) error {
			return nil
		}); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	// First token is immediate; the next two wait ~20ms each.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("3 ops finished in %v, want >= ~40ms of spacing", elapsed)
	}
}

func TestScheduleRespectsContext(t *testing.T) {
	g := NewGate(1)
	// Burn the initial token.
	_ = g.Schedule(context.Background(), func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Schedule(ctx, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected context error waiting for token")
	}
}

func TestCloseDrainsAndRejects(t *testing.T) {
	g := NewGate(1000)

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		_ = g.Schedule(context.Background(), func(ctx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			close(finished)
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-finished:
	default:
		t.Error("Close returned before in-flight operation finished")
	}

	err := g.Schedule(context.Background(), func(ctx context.Context) error { return nil })
	if !fault.IsCode(err, fault.CodeShuttingDown) {
		t.Errorf("post-close schedule error = %v, want shutting-down", err)
	}
}
