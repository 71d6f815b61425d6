package statoffice

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", SessionTTL: time.Hour}), srv
}

func TestLoginReturnsSession(t *testing.T) {
	var got request
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := xml.Unmarshal(raw, &got); err != nil {
			t.Errorf("request body: %v", err)
		}
		io.WriteString(w, `<root><sid>abcdef123456</sid></root>`)
	})
	defer srv.Close()

	s, err := c.Login(context.Background(), "corr")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.Action != actionLogin || got.Key != "test-key" {
		t.Errorf("sent action=%q key=%q", got.Action, got.Key)
	}
	if s.Handle != "abcdef123456" {
		t.Errorf("handle = %q", s.Handle)
	}
	if !s.ValidAt(time.Now(), 5*time.Minute) {
		t.Error("fresh session should be valid")
	}
}

func TestLoginRejectedKey(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><ErrorCode>7</ErrorCode><ErrorMessage>invalid key</ErrorMessage></root>`)
	})
	defer srv.Close()

	_, err := c.Login(context.Background(), "corr")
	f, ok := fault.As(err)
	if !ok || f.Code != fault.CodeAuthFailed {
		t.Fatalf("err = %v, want auth-failed", err)
	}
	if f.Details["gateway_error_code"] != "7" {
		t.Errorf("details = %v", f.Details)
	}
}

func TestLoginEmptySid(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><sid></sid></root>`)
	})
	defer srv.Close()

	_, err := c.Login(context.Background(), "corr")
	if f, ok := fault.As(err); !ok || f.Code != fault.CodeAuthFailed {
		t.Fatalf("err = %v, want auth-failed", err)
	}
}

func TestLoginNonEnvelopeBody(t *testing.T) {
	// A gateway answering 200 with HTML means the service definition is broken.
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>maintenance</body></html>`)
	})
	defer srv.Close()

	_, err := c.Login(context.Background(), "corr")
	if f, ok := fault.As(err); !ok || f.Code != fault.CodeMalformedService {
		t.Fatalf("err = %v, want malformed-service", err)
	}
}

func TestClassifySendsSessionAndCorrelation(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("sid") != "session-1" {
			t.Errorf("sid header = %q", r.Header.Get("sid"))
		}
		if r.Header.Get("X-Correlation-ID") != "corr-9" {
			t.Errorf("correlation header = %q", r.Header.Get("X-Correlation-ID"))
		}
		io.WriteString(w, `<root><dane>
			<Regon>123456785</Regon><Nip>1234563218</Nip>
			<Nazwa>TESTOWA SP Z O O</Nazwa><SilosID>6</SilosID>
		</dane></root>`)
	})
	defer srv.Close()

	cls, err := c.Classify(context.Background(), "session-1", "1234563218", "corr-9")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Category != domain.CategoryLegalEntity {
		t.Errorf("category = %s", cls.Category)
	}
	if cls.RegistryID != "123456785" || cls.LegalName != "TESTOWA SP Z O O" {
		t.Errorf("classification = %+v", cls)
	}
	if cls.EndDate != nil {
		t.Errorf("end date = %v, want nil", cls.EndDate)
	}
}

func TestClassifyParsesEndDate(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><dane>
			<Regon>123456785</Regon><Nazwa>ZAKLAD</Nazwa><SilosID>1</SilosID>
			<DataZakonczeniaDzialalnosci>2021-06-30</DataZakonczeniaDzialalnosci>
		</dane></root>`)
	})
	defer srv.Close()

	cls, err := c.Classify(context.Background(), "s", "1234563218", "corr")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.EndDate == nil || cls.EndDate.Format("2006-01-02") != "2021-06-30" {
		t.Errorf("end date = %v", cls.EndDate)
	}
}

func TestClassifyNotFound(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><ErrorCode>4</ErrorCode><ErrorMessage>No data found</ErrorMessage></root>`)
	})
	defer srv.Close()

	_, err := c.Classify(context.Background(), "s", "1234563218", "corr")
	if f, ok := fault.As(err); !ok || f.Code != fault.CodeNotFound {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestClassifySessionCodes(t *testing.T) {
	for gw, want := range map[string]fault.Code{
		"1": fault.CodeSessionInvalid,
		"2": fault.CodeSessionExpired,
	} {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<root><ErrorCode>`+gw+`</ErrorCode></root>`)
		})
		_, err := c.Classify(context.Background(), "stale", "1234563218", "corr")
		srv.Close()
		if f, ok := fault.As(err); !ok || f.Code != want {
			t.Errorf("gateway code %s: err = %v, want %s", gw, err, want)
		}
	}
}

func TestClassifyUnknownSilo(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><dane>
			<Regon>123456785</Regon><Nazwa>X</Nazwa><SilosID>9</SilosID>
		</dane></root>`)
	})
	defer srv.Close()

	_, err := c.Classify(context.Background(), "s", "1234563218", "corr")
	if f, ok := fault.As(err); !ok || f.Code != fault.CodeUnknownCategory {
		t.Fatalf("err = %v, want unknown-category", err)
	}
}

func TestClassifyMissingFields(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><dane><Nazwa>NO REGON</Nazwa></dane></root>`)
	})
	defer srv.Close()

	_, err := c.Classify(context.Background(), "s", "1234563218", "corr")
	var ve *fault.ValidationError
	if !errors.As(err, &ve) || ve.Field != "Regon" {
		t.Fatalf("err = %v, want validation error on Regon", err)
	}
}

func TestFullReport(t *testing.T) {
	var got request
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		xml.Unmarshal(raw, &got)
		io.WriteString(w, `<root><dane>
			<Regon>123456785</Regon><Nip>1234563218</Nip>
			<Nazwa>TESTOWA SP Z O O</Nazwa><FormaPrawna>SP Z O O</FormaPrawna>
			<Ulica>Prosta 1</Ulica><Miejscowosc>Warszawa</Miejscowosc>
			<KodPocztowy>00-001</KodPocztowy>
			<NumerWRejestrzeEwidencji>0000123456</NumerWRejestrzeEwidencji>
		</dane></root>`)
	})
	defer srv.Close()

	rep, err := c.FullReport(context.Background(), "s", "123456785", ReportLegal, "corr")
	if err != nil {
		t.Fatalf("full report: %v", err)
	}
	if got.Action != actionFullData || got.Report != string(ReportLegal) || got.Regon != "123456785" {
		t.Errorf("sent action=%q report=%q regon=%q", got.Action, got.Report, got.Regon)
	}
	if rep.CourtNumber != "0000123456" {
		t.Errorf("court number = %q", rep.CourtNumber)
	}
	if rep.Address() != "Prosta 1, 00-001 Warszawa" {
		t.Errorf("address = %q", rep.Address())
	}
}

func TestFullReportEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<root><dane></dane></root>`)
	})
	defer srv.Close()

	_, err := c.FullReport(context.Background(), "s", "123456785", ReportGeneric, "corr")
	if f, ok := fault.As(err); !ok || f.Code != fault.CodeEmptyReport {
		t.Fatalf("err = %v, want empty-report", err)
	}
}

func TestServerErrorBecomesStatusError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusServiceUnavailable)
	})
	defer srv.Close()

	_, err := c.Classify(context.Background(), "s", "1234563218", "corr")
	var se *fault.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503 status error", err)
	}
	f := fault.Normalize(err, fault.SourceStatOffice, "corr")
	if f.Code != fault.CodeUpstreamUnavailable {
		t.Errorf("normalized code = %s", f.Code)
	}
}

func TestLogoutNilSession(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if err := c.Logout(context.Background(), nil); err != nil {
		t.Errorf("logout(nil) = %v", err)
	}
}
