package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const resourceColumns = `id, tutor_id, title, description, subject, storage_key, content_type, is_public, created_at`

// ResourceRepository persists tutor learning resources.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs a ResourceRepository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO tutor_resources (id, tutor_id, title, description, subject, storage_key, content_type, is_public, created_at)
		VALUES (:id, :tutor_id, :title, :description, :subject, :storage_key, :content_type, :is_public, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// FindByID fetches a resource.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	var res models.Resource
	if err := r.db.GetContext(ctx, &res, `SELECT `+resourceColumns+` FROM tutor_resources WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns resources of a tutor, or public ones across tutors when tutorID is empty.
func (r *ResourceRepository) List(ctx context.Context, tutorID, subject string, publicOnly bool) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM tutor_resources WHERE 1=1`
	var args []interface{}
	if tutorID != "" {
		args = append(args, tutorID)
		query += fmt.Sprintf(" AND tutor_id = $%d", len(args))
	}
	if subject != "" {
		args = append(args, subject)
		query += fmt.Sprintf(" AND subject = $%d", len(args))
	}
	if publicOnly {
		query += " AND is_public = TRUE"
	}
	query += " ORDER BY created_at DESC"

	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// Delete removes a resource.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tutor_resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return requireAffected(res)
}
