// Package fault defines the closed failure taxonomy shared by every component.
//
// Every error crossing a component boundary is normalized to exactly one
// Failure carrying a Code from the closed set, a Source tag and the request
// correlation id. No raw error shape reaches a terminal state.
package fault

import (
	"errors"
	"fmt"
)

// Source tags the component or upstream a failure originated from.
type Source string

const (
	SourceStatOffice   Source = "stat-office"
	SourceCourtReg     Source = "court-registry"
	SourceEntrepReg    Source = "entrepreneur-registry"
	SourceInternal     Source = "internal"
)

// Code is one value of the closed failure taxonomy.
type Code string

const (
	// Input
	CodeInvalidTaxID      Code = "INVALID_TAX_ID"
	CodeInvalidRegistryID Code = "INVALID_REGISTRY_ID"
	CodeInvalidRequest    Code = "INVALID_REQUEST"

	// Negative data (legitimate results, not system errors)
	CodeNotFound     Code = "NOT_FOUND"
	CodeDeregistered Code = "DEREGISTERED_ENTITY"

	// Authentication and session
	CodeAuthFailed       Code = "AUTHENTICATION_FAILED"
	CodeSessionInvalid   Code = "SESSION_INVALID"
	CodeSessionExpired   Code = "SESSION_EXPIRED"
	CodeSessionCreate    Code = "SESSION_CREATE_FAILED"
	CodeMalformedService Code = "MALFORMED_SERVICE_DEFINITION"

	// Throttling
	CodeRateLimited   Code = "RATE_LIMIT_EXCEEDED"
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// Upstream protocol
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamBadRequest  Code = "UPSTREAM_BAD_REQUEST"
	CodeUpstreamForbidden   Code = "UPSTREAM_FORBIDDEN"
	CodeUpstreamBadResponse Code = "UPSTREAM_BAD_RESPONSE"

	// Network and time
	CodeTimeout          Code = "TIMEOUT"
	CodeCallTimeout      Code = "CALL_TIMEOUT"
	CodeConnectionFailed Code = "CONNECTION_FAILED"
	CodeDNSFailure       Code = "DNS_FAILURE"
	CodeTLSFailure       Code = "TLS_FAILURE"
	CodeCancelled        Code = "CANCELLED"

	// Data quality
	CodeSchemaValidation Code = "SCHEMA_VALIDATION_FAILED"
	CodeMappingFailed    Code = "MAPPING_FAILED"
	CodeUnknownCategory  Code = "UNKNOWN_ENTITY_CATEGORY"
	CodeEmptyReport      Code = "EMPTY_REPORT"

	// System
	CodeRetryExhausted Code = "RETRY_EXHAUSTED"
	CodeShuttingDown   Code = "SHUTTING_DOWN"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeUnclassified   Code = "UNCLASSIFIED"
)

// Failure is the single error shape visible at terminal states.
type Failure struct {
	Code          Code              `json:"code"`
	Source        Source            `json:"source"`
	Message       string            `json:"message"`
	CorrelationID string            `json:"correlation_id"`
	Details       map[string]string `json:"details,omitempty"`
}

// New builds a Failure for the given code and source.
func New(code Code, source Source, correlationID, format string, args ...any) *Failure {
	return &Failure{
		Code:          code,
		Source:        source,
		Message:       fmt.Sprintf(format, args...),
		CorrelationID: correlationID,
	}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s [%s]: %s", f.Code, f.Source, f.Message)
}

// WithDetail attaches a key/value to the failure and returns it.
func (f *Failure) WithDetail(key, value string) *Failure {
	if f.Details == nil {
		f.Details = make(map[string]string)
	}
	f.Details[key] = value
	return f
}

// Is lets errors.Is match on code equality.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}

// As extracts a *Failure from an error chain.
func As(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	f, ok := As(err)
	return ok && f.Code == code
}

// StatusError is a status-coded upstream error before normalization.
// Upstream clients return it for non-2xx responses with no richer signal.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// ValidationError is a strict-decode failure for an upstream payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed on %s: %s", e.Field, e.Reason)
}
