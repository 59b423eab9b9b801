package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

const availabilityColumns = `id, tutor_id, day_of_week, start_time, end_time, is_available, created_at, updated_at`

// AvailabilityRepository manages tutors' weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByTutor returns every window of a tutor ordered by weekday and start.
func (r *AvailabilityRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + availabilityColumns + ` FROM tutor_availability WHERE tutor_id = $1 ORDER BY day_of_week, start_time`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, tutorID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return windows, nil
}

// FindByID fetches a single window.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilityWindow, error) {
	var window models.AvailabilityWindow
	if err := r.db.GetContext(ctx, &window, `SELECT `+availabilityColumns+` FROM tutor_availability WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// Create inserts a window.
func (r *AvailabilityRepository) Create(ctx context.Context, window *models.AvailabilityWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	window.CreatedAt = now
	window.UpdatedAt = now

	const query = `INSERT INTO tutor_availability (id, tutor_id, day_of_week, start_time, end_time, is_available, created_at, updated_at)
		VALUES (:id, :tutor_id, :day_of_week, :start_time, :end_time, :is_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// Update modifies a window.
func (r *AvailabilityRepository) Update(ctx context.Context, window *models.AvailabilityWindow) error {
	window.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tutor_availability SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, is_available = :is_available, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// Delete removes a window.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tutor_availability WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}

// DaySnapshot reads the tutor's available windows for the date's weekday and the date's
// non-cancelled bookings inside one repeatable-read transaction.
func (r *AvailabilityRepository) DaySnapshot(ctx context.Context, tutorID string, date models.Date) ([]models.AvailabilityWindow, []models.Booking, error) {
	var windows []models.AvailabilityWindow
	var bookings []models.Booking
	err := database.WithTx(ctx, r.db, database.SnapshotTx(), func(tx *sqlx.Tx) error {
		windowQuery := `SELECT ` + availabilityColumns + ` FROM tutor_availability
			WHERE tutor_id = $1 AND day_of_week = $2 AND is_available = TRUE ORDER BY start_time`
		if err := tx.SelectContext(ctx, &windows, windowQuery, tutorID, int(date.Weekday())); err != nil {
			return fmt.Errorf("load day availability: %w", err)
		}
		bookingQuery := `SELECT ` + bookingColumns + ` FROM bookings b
			WHERE b.tutor_id = $1 AND b.session_date = $2 AND b.status <> 'cancelled' ORDER BY b.start_time`
		if err := tx.SelectContext(ctx, &bookings, bookingQuery, tutorID, date); err != nil {
			return fmt.Errorf("load day bookings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return windows, bookings, nil
}
