package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const certificateColumns = `id, tutor_id, file_name, storage_key, content_type, size_bytes, is_approved, approved_by, approved_at, created_at`

// CertificateRepository tracks uploaded tutor certificates and their approval.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create records an uploaded certificate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	cert.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO certificate_approvals (id, tutor_id, file_name, storage_key, content_type, size_bytes, is_approved, created_at)
		VALUES (:id, :tutor_id, :file_name, :storage_key, :content_type, :size_bytes, FALSE, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByID fetches a certificate.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, `SELECT `+certificateColumns+` FROM certificate_approvals WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// List returns certificates, optionally for one tutor and/or only pending ones.
func (r *CertificateRepository) List(ctx context.Context, tutorID string, pendingOnly bool) ([]models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificate_approvals WHERE 1=1`
	var args []interface{}
	if tutorID != "" {
		args = append(args, tutorID)
		query += fmt.Sprintf(" AND tutor_id = $%d", len(args))
	}
	if pendingOnly {
		query += " AND is_approved = FALSE"
	}
	query += " ORDER BY created_at DESC"

	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, args...); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// SetApproval records an admin decision.
func (r *CertificateRepository) SetApproval(ctx context.Context, id string, approved bool, adminID string) (*models.Certificate, error) {
	var approvedBy *string
	var approvedAt *time.Time
	if approved {
		now := time.Now().UTC()
		approvedBy, approvedAt = &adminID, &now
	}
	query := `UPDATE certificate_approvals SET is_approved = $2, approved_by = $3, approved_at = $4 WHERE id = $1 RETURNING ` + certificateColumns
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id, approved, approvedBy, approvedAt); err != nil {
		return nil, err
	}
	return &cert, nil
}

// Delete removes a certificate record.
func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM certificate_approvals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return requireAffected(res)
}

// CountPending returns certificates awaiting review.
func (r *CertificateRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM certificate_approvals WHERE is_approved = FALSE`); err != nil {
		return 0, fmt.Errorf("count pending certificates: %w", err)
	}
	return total, nil
}
