// Package ceidg wraps the entrepreneur registry REST API.
package ceidg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/core/metrics"
)

// Config holds entrepreneur registry settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Firm is the typed entrepreneur payload, validated before use.
type Firm struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Nip    string `json:"nip"`
	Regon  string `json:"regon"`
	Street string `json:"street"`
	City   string `json:"city"`
	Zip    string `json:"zip"`
}

// Active derives activity from the registry status field.
func (f *Firm) Active() bool {
	s := strings.ToUpper(f.Status)
	return s == "AKTYWNY" || s == "ACTIVE"
}

// Address renders the firm address as a single line, empty when unknown.
func (f *Firm) Address() string {
	switch {
	case f.Street == "" && f.City == "":
		return ""
	case f.Street == "":
		return f.Zip + " " + f.City
	default:
		return f.Street + ", " + f.Zip + " " + f.City
	}
}

type firmsResponse struct {
	Firms []Firm `json:"firms"`
}

// Client queries the entrepreneur registry. No retries here.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates an entrepreneur registry client with its own timeout.
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
		log: slog.Default().With("source", fault.SourceEntrepReg),
	}
}

// FindByTaxID looks up an entrepreneur by tax id. An empty result set is a
// typed not-found, never retried.
func (c *Client) FindByTaxID(
	ctx context.Context,
	taxID domain.TaxID,
	correlationID string,
) (*Firm, error) {
	start := time.Now()
	op := "find_by_tax_id"
	metrics.UpstreamCallsTotal.WithLabelValues(string(fault.SourceEntrepReg), op).Inc()

	u := fmt.Sprintf("%s/api/firms?nip=%s", c.cfg.BaseURL, url.QueryEscape(string(taxID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry call: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamLatency.
		WithLabelValues(string(fault.SourceEntrepReg), op).
		Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrorsTotal.
			WithLabelValues(string(fault.SourceEntrepReg), fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return nil, &fault.StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out firmsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &fault.ValidationError{Field: "firms", Reason: err.Error()}
	}
	if len(out.Firms) == 0 {
		return nil, fault.New(fault.CodeNotFound, fault.SourceEntrepReg, correlationID,
			"no entrepreneur registered under tax id %s", taxID.Masked())
	}

	firm := out.Firms[0]
	if firm.Name == "" {
		return nil, &fault.ValidationError{Field: "name", Reason: "missing in firm payload"}
	}
	return &firm, nil
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
