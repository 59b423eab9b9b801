package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

// ErrDuplicateReview reports a second review of the same booking.
var ErrDuplicateReview = errors.New("review already exists for booking")

const recomputeRatingQuery = `UPDATE tutors SET
	rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE tutor_id = $1), 0),
	total_reviews = (SELECT COUNT(*) FROM reviews WHERE tutor_id = $1),
	updated_at = $2
	WHERE id = $1`

// ReviewRepository persists reviews and keeps the tutor's aggregate rating in step.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs a ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts the review and recomputes the tutor aggregate in the same transaction.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	review.CreatedAt = time.Now().UTC()

	return database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO reviews (id, tutor_id, student_id, booking_id, rating, comment, created_at)
			VALUES (:id, :tutor_id, :student_id, :booking_id, :rating, :comment, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, review); err != nil {
			if database.HasCode(err, database.CodeUniqueViolation) {
				return ErrDuplicateReview
			}
			return fmt.Errorf("create review: %w", err)
		}
		if _, err := tx.ExecContext(ctx, recomputeRatingQuery, review.TutorID, review.CreatedAt); err != nil {
			return fmt.Errorf("recompute tutor rating: %w", err)
		}
		return nil
	})
}

// Delete removes a review and recomputes the tutor aggregate.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var tutorID string
		if err := tx.GetContext(ctx, &tutorID, `DELETE FROM reviews WHERE id = $1 RETURNING tutor_id`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, recomputeRatingQuery, tutorID, time.Now().UTC()); err != nil {
			return fmt.Errorf("recompute tutor rating: %w", err)
		}
		return nil
	})
}

// ListByTutor returns a tutor's reviews, newest first.
func (r *ReviewRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error) {
	const query = `SELECT r.id, r.tutor_id, r.student_id, r.booking_id, r.rating, r.comment, COALESCE(p.full_name, '') AS student_name, r.created_at
		FROM reviews r
		LEFT JOIN profiles p ON p.user_id = r.student_id
		WHERE r.tutor_id = $1
		ORDER BY r.created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, tutorID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// Count returns the number of reviews.
func (r *ReviewRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reviews`); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return total, nil
}
