// Package statoffice wraps the session-authenticated stat-office gateway.
// Every call returns a typed payload or a typed failure; retries happen
// in the retry executor above, never here.
package statoffice

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/core/metrics"
)

// Config holds stat-office gateway settings.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Client talks the gateway's envelope protocol over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a stat-office client with its own per-call timeout.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 55 * time.Minute
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
		log: slog.Default().With("source", fault.SourceStatOffice),
	}
}

// Login authenticates and returns a fresh session. Creation failures are
// classified into distinct codes: timeout, connectivity, malformed service
// definition and authentication failure.
func (c *Client) Login(ctx context.Context, correlationID string) (*domain.Session, error) {
	env, err := c.post(ctx, "", request{Action: actionLogin, Key: c.cfg.APIKey}, correlationID, "login")
	if err != nil {
		return nil, err
	}
	if env.ErrorCode != "" {
		return nil, c.protocolFailure(env, correlationID)
	}
	if env.Sid == "" {
		return nil, fault.New(fault.CodeAuthFailed, fault.SourceStatOffice, correlationID,
			"login accepted but returned no session key")
	}
	metrics.SessionRefreshesTotal.Inc()
	return &domain.Session{
		ID:        uuid.NewString(),
		Handle:    env.Sid,
		ExpiresAt: time.Now().Add(c.cfg.SessionTTL),
	}, nil
}

// Logout releases the session. Best-effort: callers ignore the error.
func (c *Client) Logout(ctx context.Context, s *domain.Session) error {
	if s == nil {
		return nil
	}
	_, err := c.post(ctx, s.Handle, request{Action: actionLogout}, "", "logout")
	return err
}

// Classify searches the register by tax id and returns the classification
// that drives all routing.
func (c *Client) Classify(
	ctx context.Context,
	sid string,
	taxID domain.TaxID,
	correlationID string,
) (*domain.Classification, error) {
	env, err := c.post(ctx, sid, request{Action: actionSearch, Nip: string(taxID)}, correlationID, "classify")
	if err != nil {
		return nil, err
	}
	if env.ErrorCode != "" {
		return nil, c.protocolFailure(env, correlationID)
	}

	d := env.Data
	if d.Regon == "" {
		return nil, &fault.ValidationError{Field: "Regon", Reason: "missing in search payload"}
	}
	if d.Name == "" {
		return nil, &fault.ValidationError{Field: "Nazwa", Reason: "missing in search payload"}
	}
	category, ok := silosCategories[d.SilosID]
	if !ok {
		return nil, fault.New(fault.CodeUnknownCategory, fault.SourceStatOffice, correlationID,
			"unrecognized silo id %q", d.SilosID)
	}
	endDate, err := parseDate(d.EndDate)
	if err != nil {
		return nil, &fault.ValidationError{Field: "DataZakonczeniaDzialalnosci", Reason: err.Error()}
	}

	return &domain.Classification{
		RegistryID: domain.RegistryID(d.Regon),
		TaxID:      taxID,
		LegalName:  d.Name,
		Category:   category,
		EndDate:    endDate,
	}, nil
}

// FullReport fetches one detailed report for a registry id.
func (c *Client) FullReport(
	ctx context.Context,
	sid string,
	regon domain.RegistryID,
	name ReportName,
	correlationID string,
) (*Report, error) {
	env, err := c.post(ctx, sid, request{
		Action: actionFullData,
		Regon:  string(regon),
		Report: string(name),
	}, correlationID, "full_report")
	if err != nil {
		return nil, err
	}
	if env.ErrorCode != "" {
		return nil, c.protocolFailure(env, correlationID)
	}

	d := env.Data
	if d.Regon == "" && d.Name == "" {
		return nil, fault.New(fault.CodeEmptyReport, fault.SourceStatOffice, correlationID,
			"report %s returned no data for %s", name, regon)
	}
	if d.Name == "" {
		return nil, &fault.ValidationError{Field: "Nazwa", Reason: "missing in report payload"}
	}
	endDate, err := parseDate(d.EndDate)
	if err != nil {
		return nil, &fault.ValidationError{Field: "DataZakonczeniaDzialalnosci", Reason: err.Error()}
	}

	return &Report{
		Regon:       domain.RegistryID(d.Regon),
		Nip:         domain.TaxID(d.Nip),
		Name:        d.Name,
		LegalForm:   d.LegalForm,
		Street:      d.Street,
		City:        d.City,
		PostalCode:  d.PostalCode,
		CourtNumber: d.CourtNumber,
		EndDate:     endDate,
	}, nil
}

// Probe checks gateway reachability without logging in.
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

func (c *Client) post(
	ctx context.Context,
	sid string,
	body request,
	correlationID, operation string,
) (*envelope, error) {
	start := time.Now()
	metrics.UpstreamCallsTotal.WithLabelValues(string(fault.SourceStatOffice), operation).Inc()

	payload, err := xml.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	if sid != "" {
		req.Header.Set("sid", sid)
	}
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway call: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamLatency.
		WithLabelValues(string(fault.SourceStatOffice), operation).
		Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &fault.StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		// A gateway answering 200 with a non-envelope body has a broken
		// service definition; logging in again will not help.
		if body.Action == actionLogin {
			return nil, fault.New(fault.CodeMalformedService, fault.SourceStatOffice, correlationID,
				"login response is not a service envelope: %v", err)
		}
		return nil, &fault.ValidationError{Field: "envelope", Reason: err.Error()}
	}
	return &env, nil
}

func (c *Client) protocolFailure(env *envelope, correlationID string) *fault.Failure {
	code, ok := errorCodes[env.ErrorCode]
	if !ok {
		code = fault.CodeUpstreamBadResponse
	}
	msg := env.ErrorMessage
	if msg == "" {
		msg = "gateway error code " + env.ErrorCode
	}
	metrics.UpstreamErrorsTotal.WithLabelValues(string(fault.SourceStatOffice), string(code)).Inc()
	return fault.New(code, fault.SourceStatOffice, correlationID, "%s", msg).
		WithDetail("gateway_error_code", env.ErrorCode)
}
