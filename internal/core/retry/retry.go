// Package retry implements the generic retry executor and the per-source
// retry strategies. Clients never retry internally; all retries run here,
// beneath the orchestrator, which only ever falls back between sources.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/core/metrics"
)

// delayCap bounds a single backoff wait regardless of attempt count.
const delayCap = 5 * time.Second

// Config defines retry behavior for one source.
type Config struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxRetries:   2,
	InitialDelay: 200 * time.Millisecond,
}

// Strategy decides whether a normalized failure is worth another attempt.
type Strategy interface {
	CanRetry(f *fault.Failure) bool
}

// retryHook is implemented by strategies that need a side effect between
// attempts, e.g. invalidating a stale session before the retry fires.
type retryHook interface {
	OnRetry(f *fault.Failure)
}

// Do executes call with bounded retries and exponential backoff plus jitter.
// The returned failure is always taxonomy-normalized; the last failure is
// returned unchanged when attempts are exhausted or the strategy declines.
func Do[T any](
	ctx context.Context,
	cfg Config,
	strat Strategy,
	source fault.Source,
	correlationID string,
	call func(ctx context.Context) (T, error),
) (T, *fault.Failure) {
	var zero T
	var last *fault.Failure

	for attempt := 0; ; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}

		last = fault.Normalize(err, source, correlationID)

		if !strat.CanRetry(last) || attempt >= cfg.MaxRetries {
			return zero, last
		}

		if hook, ok := strat.(retryHook); ok {
			hook.OnRetry(last)
		}
		metrics.RetryAttemptsTotal.WithLabelValues(string(source)).Inc()

		select {
		case <-ctx.Done():
			return zero, fault.Normalize(ctx.Err(), source, correlationID)
		case <-time.After(backoff(attempt, cfg.InitialDelay)):
		}
	}
}

// backoff returns min(initial * 2^attempt + jitter(<=10%), delayCap).
func backoff(attempt int, initial time.Duration) time.Duration {
	if initial <= 0 {
		initial = DefaultConfig.InitialDelay
	}
	d := float64(initial) * math.Pow(2, float64(attempt))
	d += d * 0.1 * rand.Float64()
	if d > float64(delayCap) {
		d = float64(delayCap)
	}
	return time.Duration(d)
}
