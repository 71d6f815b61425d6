package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/infra/health"
	"github.com/vietddude/regfetch/internal/infra/storage/postgres"
)

// Lookup runs one company lookup end to end.
type Lookup interface {
	GetCompanyData(ctx context.Context, taxID domain.TaxID, correlationID string) (*domain.UnifiedRecord, *fault.Failure)
}

// Server provides the HTTP surface: the lookup endpoint, health and metrics.
type Server struct {
	lookup  Lookup
	monitor *health.Monitor
	audit   *postgres.AuditRepo
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates the HTTP server. audit may be nil.
func NewServer(lookup Lookup, monitor *health.Monitor, audit *postgres.AuditRepo, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		lookup:  lookup,
		monitor: monitor,
		audit:   audit,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: slog.Default().With("component", "http"),
	}

	mux.HandleFunc("GET /v1/companies/{taxId}", s.handleLookup)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set("X-Correlation-ID", correlationID)

	taxID := domain.TaxID(r.PathValue("taxId")).Normalize()
	if err := taxID.Validate(); err != nil {
		f := fault.New(fault.CodeInvalidTaxID, fault.SourceInternal, correlationID, "%s", err.Error())
		s.writeFailure(w, f)
		s.record(taxID, "", nil, f, time.Since(start))
		return
	}

	rec, f := s.lookup.GetCompanyData(r.Context(), taxID, correlationID)
	if f != nil {
		s.log.Info("Lookup failed",
			"tax_id", taxID.Masked(), "code", f.Code,
			"source", f.Source, "correlation_id", correlationID)
		s.writeFailure(w, f)
		s.record(taxID, "", nil, f, time.Since(start))
		return
	}

	s.log.Info("Lookup succeeded",
		"tax_id", taxID.Masked(), "source", rec.Source,
		"correlation_id", correlationID)
	s.writeJSON(w, http.StatusOK, rec)
	s.record(taxID, string(rec.Category), rec, nil, time.Since(start))
}

// record writes the audit row in the background; a lookup never waits on or
// fails because of the audit store.
func (s *Server) record(
	taxID domain.TaxID,
	category string,
	rec *domain.UnifiedRecord,
	f *fault.Failure,
	duration time.Duration,
) {
	if s.audit == nil {
		return
	}
	out := &postgres.LookupOutcome{
		MaskedTaxID: taxID.Masked(),
		Category:    category,
		Duration:    duration,
	}
	if rec != nil {
		out.CorrelationID = rec.CorrelationID
		out.Source = rec.Source
	}
	if f != nil {
		out.CorrelationID = f.CorrelationID
		out.Source = string(f.Source)
		out.Code = string(f.Code)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.audit.Record(ctx, out); err != nil {
			s.log.Warn("Failed to record lookup audit", "error", err)
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	status := http.StatusOK
	if report.SystemStatus == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) writeFailure(w http.ResponseWriter, f *fault.Failure) {
	s.writeJSON(w, statusFor(f.Code), map[string]*fault.Failure{"error": f})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps taxonomy codes to HTTP statuses. Negative data is 404,
// caller mistakes are 400, upstream trouble is 502/504, everything else 500.
func statusFor(code fault.Code) int {
	switch code {
	case fault.CodeInvalidTaxID, fault.CodeInvalidRegistryID, fault.CodeInvalidRequest:
		return http.StatusBadRequest
	case fault.CodeNotFound, fault.CodeDeregistered:
		return http.StatusNotFound
	case fault.CodeTimeout, fault.CodeCallTimeout:
		return http.StatusGatewayTimeout
	case fault.CodeUpstreamUnavailable, fault.CodeUpstreamBadResponse,
		fault.CodeConnectionFailed, fault.CodeDNSFailure, fault.CodeTLSFailure,
		fault.CodeEmptyReport, fault.CodeRateLimited, fault.CodeQuotaExceeded,
		fault.CodeAuthFailed, fault.CodeSessionInvalid, fault.CodeSessionExpired,
		fault.CodeSessionCreate, fault.CodeMalformedService,
		fault.CodeUpstreamBadRequest, fault.CodeUpstreamForbidden:
		return http.StatusBadGateway
	case fault.CodeShuttingDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
