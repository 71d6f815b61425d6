package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Prober checks reachability of one upstream source or backing service.
// Probes bypass the rate gate and the retry executor: a health check must
// never consume lookup quota.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Monitor aggregates health status from the upstream sources.
type Monitor struct {
	probers    map[string]Prober
	timeout    time.Duration
	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a health monitor over named probers.
func NewMonitor(probers map[string]Prober) *Monitor {
	return &Monitor{
		probers: probers,
		timeout: 5 * time.Second,
	}
}

// CheckHealth probes every source in parallel and returns the report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks (max once per 10s) to avoid spamming the upstreams
	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Sources != nil {
		return m.lastReport
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var reportMu sync.Mutex
	sources := make(map[string]SourceHealth, len(m.probers))

	g, ctx := errgroup.WithContext(ctx)
	for name, p := range m.probers {
		name, p := name, p
		g.Go(func() error {
			start := time.Now()
			h := SourceHealth{Source: name, Status: StatusHealthy}
			if err := p.Probe(ctx); err != nil {
				h.Status = StatusDegraded
				h.Error = err.Error()
			}
			h.LatencyMS = time.Since(start).Milliseconds()
			reportMu.Lock()
			sources[name] = h
			reportMu.Unlock()
			return nil
		})
	}
	g.Wait()

	report := Report{Sources: sources}
	report.SystemStatus = report.Overall()

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
