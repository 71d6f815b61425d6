// Package courtreg wraps the court registry REST API. The register is split
// into two namespaces: entrepreneurs (primary) and associations/foundations
// (secondary); the same number is looked up in at most one of them per call.
package courtreg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/core/metrics"
)

// Namespace selects which division of the register to query.
type Namespace string

const (
	NamespacePrimary   Namespace = "P" // entrepreneurs
	NamespaceSecondary Namespace = "S" // associations and foundations
)

// Config holds court registry settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Record is the typed current-extract payload, validated before use.
type Record struct {
	Number    string `json:"number"`
	Name      string `json:"name"`
	LegalForm string `json:"legal_form"`
	Status    string `json:"status"`
	Namespace Namespace
}

// Active derives activity from the registry status field.
func (r *Record) Active() bool {
	s := strings.ToUpper(r.Status)
	return s != "WYKRESLONY" && s != "DELETED" && s != "LIQUIDATED"
}

// Client queries the court registry. No retries here.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a court registry client with its own per-call timeout.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default().With("source", fault.SourceCourtReg),
	}
}

// CurrentExtract fetches the current extract for a number in one namespace.
// A 404 is a typed not-found; the orchestrator decides whether to try the
// other namespace.
func (c *Client) CurrentExtract(
	ctx context.Context,
	ns Namespace,
	number string,
	correlationID string,
) (*Record, error) {
	start := time.Now()
	op := "current_extract"
	metrics.UpstreamCallsTotal.WithLabelValues(string(fault.SourceCourtReg), op).Inc()

	url := fmt.Sprintf("%s/api/registry/%s/%s", c.cfg.BaseURL, ns, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry call: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamLatency.
		WithLabelValues(string(fault.SourceCourtReg), op).
		Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrorsTotal.
			WithLabelValues(string(fault.SourceCourtReg), fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return nil, &fault.StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &fault.ValidationError{Field: "extract", Reason: err.Error()}
	}
	if rec.Number == "" {
		return nil, &fault.ValidationError{Field: "number", Reason: "missing in extract"}
	}
	if rec.Name == "" {
		return nil, &fault.ValidationError{Field: "name", Reason: "missing in extract"}
	}
	rec.Namespace = ns
	return &rec, nil
}

// Probe checks registry reachability.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &fault.StatusError{Status: resp.StatusCode}
	}
	return nil
}
