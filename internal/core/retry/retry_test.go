package retry

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/regfetch/internal/core/fault"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, f := Do(context.Background(), DefaultConfig, CourtRegistry{},
		fault.SourceCourtReg, "corr",
		func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		})
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d after %d calls, want 42 after 1", got, calls)
	}
}

func TestDoNonRetryableMakesOneAttempt(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 10, InitialDelay: time.Millisecond}
	_, f := Do(context.Background(), cfg, Never{},
		fault.SourceCourtReg, "corr",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &fault.StatusError{Status: 500, Body: "boom"}
		})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if f == nil || f.Code != fault.CodeUpstreamUnavailable {
		t.Errorf("failure = %v, want upstream-unavailable", f)
	}
}

func TestDoBoundedAttempts(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 2, InitialDelay: time.Millisecond}
	_, f := Do(context.Background(), cfg, CourtRegistry{},
		fault.SourceCourtReg, "corr",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &fault.StatusError{Status: 503, Body: "unavailable"}
		})
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (maxRetries=2)", calls)
	}
	if f == nil || f.Code != fault.CodeUpstreamUnavailable {
		t.Errorf("failure = %v, want last upstream failure", f)
	}
}

func TestDoNotFoundNeverRetried(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 5, InitialDelay: time.Millisecond}
	_, f := Do(context.Background(), cfg, CourtRegistry{},
		fault.SourceCourtReg, "corr",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &fault.StatusError{Status: 404, Body: "no entry"}
		})
	if calls != 1 {
		t.Errorf("calls = %d, want 1: not-found is negative data", calls)
	}
	if f.Code != fault.CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", f.Code)
	}
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	cfg := Config{MaxRetries: 10, InitialDelay: time.Second}
	_, f := Do(ctx, cfg, CourtRegistry{},
		fault.SourceCourtReg, "corr",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &fault.StatusError{Status: 503, Body: "down"}
		})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled during backoff)", calls)
	}
	if f == nil || f.Code != fault.CodeCallTimeout {
		t.Errorf("failure = %v, want call-timeout", f)
	}
}

func TestBackoffNonDecreasingUpToCap(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		d := backoff(attempt, 100*time.Millisecond)
		if d > delayCap {
			t.Errorf("attempt %d: delay %v exceeds cap %v", attempt, d, delayCap)
		}
		// Jitter is at most 10%, doubling dominates: never below the previous base.
		if d < prev/2 {
			t.Errorf("attempt %d: delay %v collapsed below previous %v", attempt, d, prev)
		}
		prev = d
	}
}
