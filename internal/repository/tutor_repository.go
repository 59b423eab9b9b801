package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const tutorSelect = `SELECT t.id, t.user_id, COALESCE(p.full_name, '') AS full_name, t.bio, t.subjects, t.qualifications,
	t.languages, t.teaching_level, t.teaching_location, t.education_level, t.gender, t.hourly_rate, t.experience_years,
	t.is_approved, t.rating, t.total_reviews, t.created_at, t.updated_at
	FROM tutors t
	LEFT JOIN profiles p ON p.user_id = t.user_id`

// TutorRepository manages tutor profiles and the directory search.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs a TutorRepository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// Search returns tutors matching filter along with the total count.
func (r *TutorRepository) Search(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeUnapproved {
		conditions = append(conditions, "t.is_approved = TRUE")
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(COALESCE(p.full_name, '')) LIKE $%d OR LOWER(COALESCE(t.bio, '')) LIKE $%d OR EXISTS (SELECT 1 FROM unnest(t.subjects) s WHERE LOWER(s) LIKE $%d))", n, n, n))
		args = append(args, search)
	}
	if len(filter.Subjects) > 0 {
		conditions = append(conditions, fmt.Sprintf("t.subjects && $%d", len(args)+1))
		args = append(args, pq.Array(filter.Subjects))
	}
	if filter.EducationLevel != "" {
		conditions = append(conditions, fmt.Sprintf("t.education_level = $%d", len(args)+1))
		args = append(args, filter.EducationLevel)
	}
	if filter.TeachingLevel != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(t.teaching_level)", len(args)+1))
		args = append(args, filter.TeachingLevel)
	}
	if filter.TeachingLocation != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(t.teaching_location)", len(args)+1))
		args = append(args, filter.TeachingLocation)
	}
	if filter.Gender != "" {
		conditions = append(conditions, fmt.Sprintf("t.gender = $%d", len(args)+1))
		args = append(args, filter.Gender)
	}
	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("t.rating >= $%d", len(args)+1))
		args = append(args, *filter.MinRating)
	}
	if filter.MaxHourlyRate != nil {
		conditions = append(conditions, fmt.Sprintf("t.hourly_rate <= $%d", len(args)+1))
		args = append(args, *filter.MaxHourlyRate)
	}

	where := " WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"rating":      "t.rating",
		"hourly_rate": "t.hourly_rate",
		"experience":  "t.experience_years",
		"created_at":  "t.created_at",
		"full_name":   "p.full_name",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "t.rating"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s, t.id LIMIT %d OFFSET %d", tutorSelect, where, column, order, size, (page-1)*size)
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search tutors: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM tutors t LEFT JOIN profiles p ON p.user_id = t.user_id" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutors: %w", err)
	}
	return tutors, total, nil
}

// FindByID fetches a tutor by tutor id.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, tutorSelect+` WHERE t.id = $1`, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByUserID fetches the tutor profile owned by a user.
func (r *TutorRepository) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, tutorSelect+` WHERE t.user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// Upsert creates the tutor row for a user or updates its editable fields. Approval,
// rating and review counters are never touched here.
func (r *TutorRepository) Upsert(ctx context.Context, tutor *models.Tutor) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tutor.CreatedAt = now
	tutor.UpdatedAt = now

	const query = `INSERT INTO tutors (id, user_id, bio, subjects, qualifications, languages, teaching_level, teaching_location,
			education_level, gender, hourly_rate, experience_years, is_approved, rating, total_reviews, created_at, updated_at)
		VALUES (:id, :user_id, :bio, :subjects, :qualifications, :languages, :teaching_level, :teaching_location,
			:education_level, :gender, :hourly_rate, :experience_years, FALSE, 0, 0, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET bio = EXCLUDED.bio, subjects = EXCLUDED.subjects, qualifications = EXCLUDED.qualifications,
			languages = EXCLUDED.languages, teaching_level = EXCLUDED.teaching_level, teaching_location = EXCLUDED.teaching_location,
			education_level = EXCLUDED.education_level, gender = EXCLUDED.gender, hourly_rate = EXCLUDED.hourly_rate,
			experience_years = EXCLUDED.experience_years, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, tutor); err != nil {
		return fmt.Errorf("upsert tutor: %w", err)
	}
	return nil
}

// SetApproved toggles the approval flag.
func (r *TutorRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tutors SET is_approved = $2, updated_at = $3 WHERE id = $1`, id, approved, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set tutor approval: %w", err)
	}
	return requireAffected(res)
}

// Subjects returns the distinct subjects taught by approved tutors.
func (r *TutorRepository) Subjects(ctx context.Context) ([]string, error) {
	return r.catalogue(ctx, "subjects")
}

// Qualifications returns the distinct qualifications of approved tutors.
func (r *TutorRepository) Qualifications(ctx context.Context) ([]string, error) {
	return r.catalogue(ctx, "qualifications")
}

func (r *TutorRepository) catalogue(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT value FROM tutors, unnest(%s) AS value WHERE is_approved = TRUE AND value <> '' ORDER BY value`, column)
	var values []string
	if err := r.db.SelectContext(ctx, &values, query); err != nil {
		return nil, fmt.Errorf("list tutor %s: %w", column, err)
	}
	return values, nil
}

// Counts returns the number of tutors and how many await approval.
func (r *TutorRepository) Counts(ctx context.Context) (total, pending int, err error) {
	var row struct {
		Total   int `db:"total"`
		Pending int `db:"pending"`
	}
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT is_approved) AS pending FROM tutors`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("count tutors: %w", err)
	}
	return row.Total, row.Pending, nil
}
