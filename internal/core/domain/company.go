package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaxID is a 10-digit Polish NIP, the primary lookup key.
type TaxID string

// nipWeights are the checksum weights for the first nine NIP digits.
var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// Normalize strips separators commonly pasted with a NIP.
func (t TaxID) Normalize() TaxID {
	s := strings.NewReplacer("-", "", " ", "").Replace(string(t))
	return TaxID(s)
}

// Validate checks length, digits and the mod-11 checksum.
func (t TaxID) Validate() error {
	s := string(t)
	if len(s) != 10 {
		return fmt.Errorf("tax id must have 10 digits, got %d", len(s))
	}
	sum := 0
	for i, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("tax id contains non-digit %q", r)
		}
		if i < 9 {
			sum += int(r-'0') * nipWeights[i]
		}
	}
	if sum%11 != int(s[9]-'0') {
		return fmt.Errorf("tax id checksum mismatch")
	}
	return nil
}

// Masked returns the tax id with the middle digits hidden, for logs and audit rows.
func (t TaxID) Masked() string {
	s := string(t)
	if len(s) != 10 {
		return "***"
	}
	return s[:3] + "*****" + s[8:]
}

// RegistryID is a 9- or 14-digit statistical identifier (REGON).
type RegistryID string

// Validate checks the identifier has one of the two legal lengths.
func (r RegistryID) Validate() error {
	if n := len(r); n != 9 && n != 14 {
		return fmt.Errorf("registry id must have 9 or 14 digits, got %d", n)
	}
	for _, c := range r {
		if c < '0' || c > '9' {
			return fmt.Errorf("registry id contains non-digit %q", c)
		}
	}
	return nil
}

// UnifiedRecord is the final aggregated output. Immutable once produced.
type UnifiedRecord struct {
	TaxID         TaxID      `json:"tax_id"`
	RegistryID    RegistryID `json:"registry_id"`
	CourtNumber   string     `json:"court_number,omitempty"`
	Name          string     `json:"name"`
	LegalForm     string     `json:"legal_form,omitempty"`
	Category      EntityCategory `json:"category"`
	Address       string     `json:"address,omitempty"`
	IsActive      bool       `json:"is_active"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Source        string     `json:"source"`
	CorrelationID string     `json:"correlation_id"`
	FetchedAt     time.Time  `json:"fetched_at"`
}
