package fault

import (
	"context"
	"errors"
	"net"
	"strings"
)

// detector is one (match, build) pair in the priority-ordered chain.
// The last entry always matches, so Normalize is total.
type detector struct {
	name  string
	match func(err error) bool
	build func(err error, source Source, correlationID string) *Failure
}

// detectors are ordered most specific first: an already-typed failure, then
// validation errors, then status-coded errors, then protocol patterns
// (timeout/connection), then the generic fallback.
var detectors = []detector{
	{
		name: "typed-failure",
		match: func(err error) bool {
			var f *Failure
			return errors.As(err, &f)
		},
		build: func(err error, _ Source, correlationID string) *Failure {
			f, _ := As(err)
			if f.CorrelationID == "" {
				f.CorrelationID = correlationID
			}
			return f
		},
	},
	{
		name: "validation",
		match: func(err error) bool {
			var v *ValidationError
			return errors.As(err, &v)
		},
		build: func(err error, source Source, correlationID string) *Failure {
			var v *ValidationError
			errors.As(err, &v)
			return New(CodeSchemaValidation, source, correlationID, "%s", v.Error()).
				WithDetail("field", v.Field)
		},
	},
	{
		name: "status",
		match: func(err error) bool {
			var s *StatusError
			return errors.As(err, &s)
		},
		build: func(err error, source Source, correlationID string) *Failure {
			var s *StatusError
			errors.As(err, &s)
			return New(codeForStatus(s.Status), source, correlationID,
				"upstream returned status %d", s.Status)
		},
	},
	{
		name: "protocol",
		match: func(err error) bool {
			return protocolCode(err) != ""
		},
		build: func(err error, source Source, correlationID string) *Failure {
			return New(protocolCode(err), source, correlationID, "%s", err.Error())
		},
	},
	{
		name:  "fallback",
		match: func(error) bool { return true },
		build: func(err error, source Source, correlationID string) *Failure {
			return New(CodeUnclassified, source, correlationID, "%s", err.Error())
		},
	},
}

// Normalize maps any error to exactly one taxonomy Failure.
// Returns nil for a nil error.
func Normalize(err error, source Source, correlationID string) *Failure {
	if err == nil {
		return nil
	}
	for _, d := range detectors {
		if d.match(err) {
			return d.build(err, source, correlationID)
		}
	}
	// Unreachable: the fallback detector always matches.
	return New(CodeInternal, source, correlationID, "%s", err.Error())
}

func codeForStatus(status int) Code {
	switch {
	case status == 404:
		return CodeNotFound
	case status == 401:
		return CodeAuthFailed
	case status == 403:
		return CodeUpstreamForbidden
	case status == 408:
		return CodeCallTimeout
	case status == 429:
		return CodeRateLimited
	case status >= 500:
		return CodeUpstreamUnavailable
	case status >= 400:
		return CodeUpstreamBadRequest
	default:
		return CodeUpstreamBadResponse
	}
}

func protocolCode(err error) Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeCallTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeCallTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeDNSFailure
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "tls"), strings.Contains(s, "certificate"):
		return CodeTLSFailure
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "no route to host"),
		strings.Contains(s, "eof"):
		return CodeConnectionFailed
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline"):
		return CodeCallTimeout
	}
	return ""
}
