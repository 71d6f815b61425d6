package retry

import "github.com/vietddude/regfetch/internal/core/fault"

// Codes retryable for every source: 5xx-equivalents and transient transport
// failures. Not-found is never retryable anywhere; it is negative data the
// orchestrator handles by fallback.
func transientCode(code fault.Code) bool {
	switch code {
	case fault.CodeUpstreamUnavailable,
		fault.CodeCallTimeout,
		fault.CodeConnectionFailed,
		fault.CodeDNSFailure,
		fault.CodeRateLimited:
		return true
	}
	return false
}

// SessionInvalidator is the slice of the session manager the stat-office
// strategy needs between attempts.
type SessionInvalidator interface {
	Clear()
}

// StatOffice is the retry strategy for the session-authenticated source.
// Session-invalid/expired failures are retryable after invalidating the
// cached session; authentication failures and malformed service definitions
// are terminal.
type StatOffice struct {
	Sessions SessionInvalidator
}

func (s StatOffice) CanRetry(f *fault.Failure) bool {
	switch f.Code {
	case fault.CodeSessionInvalid, fault.CodeSessionExpired:
		return true
	case fault.CodeAuthFailed, fault.CodeMalformedService:
		return false
	}
	return transientCode(f.Code)
}

// OnRetry clears the cached session so the next attempt logs in fresh.
func (s StatOffice) OnRetry(f *fault.Failure) {
	if s.Sessions == nil {
		return
	}
	switch f.Code {
	case fault.CodeSessionInvalid, fault.CodeSessionExpired:
		s.Sessions.Clear()
	}
}

// CourtRegistry is the retry strategy for the court registry REST source.
type CourtRegistry struct{}

func (CourtRegistry) CanRetry(f *fault.Failure) bool {
	return transientCode(f.Code)
}

// EntrepreneurRegistry is the retry strategy for the entrepreneur registry.
type EntrepreneurRegistry struct{}

func (EntrepreneurRegistry) CanRetry(f *fault.Failure) bool {
	return transientCode(f.Code)
}

// Never declines every failure. Used where a call must run exactly once.
type Never struct{}

func (Never) CanRetry(*fault.Failure) bool { return false }
