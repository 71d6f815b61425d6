// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SourceHealth contains health details for one upstream source or backing
// service.
type SourceHealth struct {
	Source    string       `json:"source"`
	Status    SystemStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	LatencyMS int64        `json:"latency_ms"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Sources      map[string]SourceHealth `json:"sources"`
}

// Overall aggregates per-source statuses, worst case wins. The service stays
// degraded rather than critical while at least one source answers: a single
// reachable source can still produce partial results.
func (r Report) Overall() SystemStatus {
	total, down := 0, 0
	worst := StatusHealthy
	for _, s := range r.Sources {
		total++
		if s.Status != StatusHealthy {
			down++
			worst = StatusDegraded
		}
	}
	if total > 0 && down == total {
		worst = StatusCritical
	}
	return worst
}
