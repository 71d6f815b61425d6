// Package ratelimit gates calls to the stat-office source behind a token
// bucket with a single serialized execution lane. Excess operations queue;
// none are dropped. Close drains queued work before returning.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/core/metrics"
)

// Gate serializes operations and spaces them out at the configured rate.
type Gate struct {
	lim  *rate.Limiter
	lane chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewGate creates a gate admitting perSecond operations with burst 1.
// Burst 1 plus the single lane keeps operations fully serialized.
func NewGate(perSecond float64) *Gate {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Gate{
		lim:  rate.NewLimiter(rate.Limit(perSecond), 1),
		lane: make(chan struct{}, 1),
	}
}

// Schedule runs op under the gate. Calls queue behind the lane and execute
// one at a time, each after acquiring a token. A gate that is shutting down
// rejects new work but finishes work already queued.
func (g *Gate) Schedule(ctx context.Context, op func(ctx context.Context) error) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fault.New(fault.CodeShuttingDown, fault.SourceInternal, "",
			"rate limiter is draining")
	}
	g.wg.Add(1)
	g.mu.Unlock()
	defer g.wg.Done()

	metrics.RateLimiterQueueDepth.Inc()
	defer metrics.RateLimiterQueueDepth.Dec()

	select {
	case g.lane <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.lane }()

	if err := g.lim.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Close stops admitting new operations and waits for queued ones to finish.
func (g *Gate) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
