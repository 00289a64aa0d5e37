package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
)

// AuditRepository persists processing audit entries. Entries never hold
// decoded personal data.
type AuditRepository struct {
	db sqlx.ExtContext
}

// NewAuditRepository creates a new audit repository. db is usually a
// *database.DB; tests pass a sqlmock-backed *sqlx.DB.
func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry, assigning its ID when empty
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO extraction_audit (id, job_id, subject, document_type, format, processor, status,
		                              checks_passed, failed_checks, corrections, error_kind, consent_at, created_at)
		VALUES (:id, :job_id, :subject, :document_type, :format, :processor, :status,
		        :checks_passed, :failed_checks, :corrections, :error_kind, :consent_at, :created_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByJob returns the audit entries of one job, oldest first
func (r *AuditRepository) ListByJob(ctx context.Context, jobID string) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, job_id, subject, document_type, format, processor, status,
		       checks_passed, failed_checks, corrections, error_kind, consent_at, created_at
		FROM extraction_audit
		WHERE job_id = $1
		ORDER BY created_at
	`

	var entries []domain.AuditEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, jobID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// DeleteBefore removes entries older than cutoff and returns how many were removed
func (r *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM extraction_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	return res.RowsAffected()
}
