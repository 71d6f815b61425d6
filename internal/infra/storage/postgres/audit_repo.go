package postgres

import (
	"context"
	"fmt"
	"time"
)

// LookupOutcome is one audited lookup, recorded after the request terminates.
type LookupOutcome struct {
	CorrelationID string        `db:"correlation_id"`
	MaskedTaxID   string        `db:"masked_tax_id"`
	Category      string        `db:"category"`
	Source        string        `db:"source"`
	Code          string        `db:"code"`
	Duration      time.Duration `db:"-"`
	CreatedAt     time.Time     `db:"created_at"`
}

// AuditRepo persists lookup outcomes using PostgreSQL.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new PostgreSQL audit repository.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record writes one lookup outcome. An empty code means success.
func (r *AuditRepo) Record(ctx context.Context, o *LookupOutcome) error {
	query := `
		INSERT INTO lookup_audit (correlation_id, masked_tax_id, category, source, code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		o.CorrelationID,
		o.MaskedTaxID,
		o.Category,
		o.Source,
		o.Code,
		o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record lookup outcome: %w", err)
	}
	return nil
}

// CountSince returns the number of lookups recorded after the cutoff.
func (r *AuditRepo) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM lookup_audit
		WHERE created_at >= $1
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, cutoff); err != nil {
		return 0, fmt.Errorf("failed to count lookups: %w", err)
	}
	return count, nil
}

// RecentFailures returns the latest failed lookups, newest first.
func (r *AuditRepo) RecentFailures(ctx context.Context, limit int) ([]*LookupOutcome, error) {
	query := `
		SELECT correlation_id, masked_tax_id, category, source, code, created_at
		FROM lookup_audit
		WHERE code <> ''
		ORDER BY created_at DESC
		LIMIT $1
	`
	var rows []struct {
		CorrelationID string    `db:"correlation_id"`
		MaskedTaxID   string    `db:"masked_tax_id"`
		Category      string    `db:"category"`
		Source        string    `db:"source"`
		Code          string    `db:"code"`
		CreatedAt     time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list failed lookups: %w", err)
	}

	var out []*LookupOutcome
	for _, row := range rows {
		out = append(out, &LookupOutcome{
			CorrelationID: row.CorrelationID,
			MaskedTaxID:   row.MaskedTaxID,
			Category:      row.Category,
			Source:        row.Source,
			Code:          row.Code,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}
