// Package mapping builds the unified record from whatever source payloads
// the orchestration collected. The record is schema-validated before it is
// returned; any gap is a mapping-failed fault.
package mapping

import (
	"time"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/infra/upstream/ceidg"
	"github.com/vietddude/regfetch/internal/infra/upstream/courtreg"
	"github.com/vietddude/regfetch/internal/infra/upstream/statoffice"
)

// Input is the mapping context accumulated by the orchestration.
type Input struct {
	TaxID          domain.TaxID
	CorrelationID  string
	Classification *domain.Classification

	// At most one of the detail payloads below is authoritative; the court
	// record supplements the stat-office report when both are present.
	StatReport  *statoffice.Report
	CourtRecord *courtreg.Record
	Firm        *ceidg.Firm
}

// Mapper maps collected payloads into the unified record.
type Mapper struct {
	now func() time.Time
}

// New creates a mapper using the wall clock.
func New() *Mapper {
	return &Mapper{now: time.Now}
}

// ToUnified produces the unified record. The source tag names the most
// authoritative payload used: court-registry when the court record is
// present, entrepreneur-registry when the firm is, stat-office otherwise.
func (m *Mapper) ToUnified(in Input) (*domain.UnifiedRecord, *fault.Failure) {
	if in.Classification == nil {
		return nil, fault.New(fault.CodeMappingFailed, fault.SourceInternal, in.CorrelationID,
			"mapping requires a classification")
	}

	rec := &domain.UnifiedRecord{
		TaxID:         in.TaxID,
		RegistryID:    in.Classification.RegistryID,
		Name:          in.Classification.LegalName,
		Category:      in.Classification.Category,
		EndedAt:       in.Classification.EndDate,
		Source:        string(fault.SourceStatOffice),
		CorrelationID: in.CorrelationID,
		FetchedAt:     m.now(),
		IsActive:      in.Classification.EndDate == nil,
	}

	if in.StatReport != nil {
		if in.StatReport.Name != "" {
			rec.Name = in.StatReport.Name
		}
		rec.LegalForm = in.StatReport.LegalForm
		rec.Address = in.StatReport.Address()
		rec.CourtNumber = in.StatReport.CourtNumber
		if in.StatReport.EndDate != nil {
			rec.EndedAt = in.StatReport.EndDate
			rec.IsActive = false
		}
	}

	switch {
	case in.CourtRecord != nil:
		rec.Source = string(fault.SourceCourtReg)
		rec.CourtNumber = in.CourtRecord.Number
		rec.Name = in.CourtRecord.Name
		if in.CourtRecord.LegalForm != "" {
			rec.LegalForm = in.CourtRecord.LegalForm
		}
		rec.IsActive = in.CourtRecord.Active() && rec.EndedAt == nil

	case in.Firm != nil:
		rec.Source = string(fault.SourceEntrepReg)
		rec.Name = in.Firm.Name
		if addr := in.Firm.Address(); addr != "" {
			rec.Address = addr
		}
		rec.IsActive = in.Firm.Active() && rec.EndedAt == nil
	}

	if f := m.validate(rec, in.CorrelationID); f != nil {
		return nil, f
	}
	return rec, nil
}

// ToInactive builds the record for an entity whose classification already
// carries an end date; routing skips the detail fetches, so only the
// classification is available.
func (m *Mapper) ToInactive(in Input) (*domain.UnifiedRecord, *fault.Failure) {
	if in.Classification == nil || in.Classification.EndDate == nil {
		return nil, fault.New(fault.CodeMappingFailed, fault.SourceInternal, in.CorrelationID,
			"inactive mapping requires a classification with an end date")
	}
	rec := &domain.UnifiedRecord{
		TaxID:         in.TaxID,
		RegistryID:    in.Classification.RegistryID,
		Name:          in.Classification.LegalName,
		Category:      in.Classification.Category,
		EndedAt:       in.Classification.EndDate,
		IsActive:      false,
		Source:        string(fault.SourceStatOffice),
		CorrelationID: in.CorrelationID,
		FetchedAt:     m.now(),
	}
	if f := m.validate(rec, in.CorrelationID); f != nil {
		return nil, f
	}
	return rec, nil
}

func (m *Mapper) validate(rec *domain.UnifiedRecord, correlationID string) *fault.Failure {
	if err := rec.TaxID.Validate(); err != nil {
		return fault.New(fault.CodeMappingFailed, fault.SourceInternal, correlationID,
			"unified record tax id: %v", err)
	}
	if err := rec.RegistryID.Validate(); err != nil {
		return fault.New(fault.CodeMappingFailed, fault.SourceInternal, correlationID,
			"unified record registry id: %v", err)
	}
	if rec.Name == "" {
		return fault.New(fault.CodeMappingFailed, fault.SourceInternal, correlationID,
			"unified record has no name")
	}
	if !rec.Category.Known() {
		return fault.New(fault.CodeMappingFailed, fault.SourceInternal, correlationID,
			"unified record category %q outside the closed set", rec.Category)
	}
	return nil
}
