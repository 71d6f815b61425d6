package retry

import (
	"testing"

	"github.com/vietddude/regfetch/internal/core/fault"
)

type fakeInvalidator struct{ cleared int }

func (f *fakeInvalidator) Clear() { f.cleared++ }

func TestStatOfficeStrategy(t *testing.T) {
	s := StatOffice{}

	tests := []struct {
		code   fault.Code
		expect bool
	}{
		{fault.CodeSessionInvalid, true},
		{fault.CodeSessionExpired, true},
		{fault.CodeAuthFailed, false},
		{fault.CodeMalformedService, false},
		{fault.CodeUpstreamUnavailable, true},
		{fault.CodeCallTimeout, true},
		{fault.CodeConnectionFailed, true},
		{fault.CodeNotFound, false},
		{fault.CodeUpstreamBadRequest, false},
		{fault.CodeSchemaValidation, false},
	}
	for _, tt := range tests {
		f := fault.New(tt.code, fault.SourceStatOffice, "c", "x")
		if got := s.CanRetry(f); got != tt.expect {
			t.Errorf("StatOffice.CanRetry(%s) = %v, want %v", tt.code, got, tt.expect)
		}
	}
}

func TestStatOfficeOnRetryClearsSessionCodesOnly(t *testing.T) {
	inv := &fakeInvalidator{}
	s := StatOffice{Sessions: inv}

	s.OnRetry(fault.New(fault.CodeSessionInvalid, fault.SourceStatOffice, "c", "x"))
	s.OnRetry(fault.New(fault.CodeSessionExpired, fault.SourceStatOffice, "c", "x"))
	s.OnRetry(fault.New(fault.CodeUpstreamUnavailable, fault.SourceStatOffice, "c", "x"))

	if inv.cleared != 2 {
		t.Errorf("cleared = %d, want 2", inv.cleared)
	}
}

func TestRESTStrategies(t *testing.T) {
	for _, s := range []Strategy{CourtRegistry{}, EntrepreneurRegistry{}} {
		if s.CanRetry(fault.New(fault.CodeNotFound, fault.SourceCourtReg, "c", "x")) {
			t.Errorf("%T retries not-found", s)
		}
		if s.CanRetry(fault.New(fault.CodeUpstreamBadRequest, fault.SourceCourtReg, "c", "x")) {
			t.Errorf("%T retries 4xx", s)
		}
		if !s.CanRetry(fault.New(fault.CodeUpstreamUnavailable, fault.SourceCourtReg, "c", "x")) {
			t.Errorf("%T does not retry 5xx", s)
		}
		if s.CanRetry(fault.New(fault.CodeSessionInvalid, fault.SourceCourtReg, "c", "x")) {
			t.Errorf("%T retries session faults it cannot fix", s)
		}
	}
}
