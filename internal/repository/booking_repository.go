package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

var (
	// ErrSlotTaken reports that the requested interval overlaps an active booking.
	ErrSlotTaken = errors.New("booking slot taken")
	// ErrStatusChanged reports that a compare-and-swap status update found the booking in
	// an unexpected state.
	ErrStatusChanged = errors.New("booking status changed")
)

const bookingColumns = `b.id, b.tutor_id, b.student_id, b.session_date, b.start_time, b.end_time, b.status,
	b.subject, b.focus_topic, b.notes, b.cancellation_deadline, b.cancelled_at, b.cancelled_by, b.created_at, b.updated_at`

const bookingViewSelect = `SELECT ` + bookingColumns + `,
	t.user_id AS tutor_user_id, COALESCE(tp.full_name, '') AS tutor_name, COALESCE(sp.full_name, '') AS student_name
	FROM bookings b
	JOIN tutors t ON t.id = b.tutor_id
	LEFT JOIN profiles tp ON tp.user_id = t.user_id
	LEFT JOIN profiles sp ON sp.user_id = b.student_id`

const conflictQuery = `SELECT EXISTS (
	SELECT 1 FROM bookings
	WHERE tutor_id = $1 AND session_date = $2
		AND status IN ('pending', 'confirmed')
		AND start_time < $4 AND end_time > $3
		AND id::text <> $5
)`

// BookingRepository persists bookings and guards the one-active-booking-per-interval
// invariant.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// HasConflict reports whether [start, end) overlaps an active booking of the tutor on date.
func (r *BookingRepository) HasConflict(ctx context.Context, q models.BookingConflictQuery) (bool, error) {
	return hasConflict(ctx, r.db, q)
}

func hasConflict(ctx context.Context, db sqlx.QueryerContext, q models.BookingConflictQuery) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, conflictQuery, q.TutorID, q.SessionDate, q.StartTime, q.EndTime, q.ExcludeBookingID); err != nil {
		return false, fmt.Errorf("check booking conflict: %w", err)
	}
	return exists, nil
}

// lockTutorDay serialises writers for one tutor and date until the transaction ends.
func lockTutorDay(ctx context.Context, tx *sqlx.Tx, tutorID string, date models.Date) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tutorID+"|"+date.String()); err != nil {
		return fmt.Errorf("lock tutor day: %w", err)
	}
	return nil
}

// CreateIfFree inserts the booking only when its interval is free. The check and the
// insert share one transaction holding the tutor-day advisory lock.
func (r *BookingRepository) CreateIfFree(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if err := lockTutorDay(ctx, tx, booking.TutorID, booking.SessionDate); err != nil {
			return err
		}
		taken, err := hasConflict(ctx, tx, models.BookingConflictQuery{
			TutorID:     booking.TutorID,
			SessionDate: booking.SessionDate,
			StartTime:   booking.StartTime,
			EndTime:     booking.EndTime,
		})
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		const query = `INSERT INTO bookings (id, tutor_id, student_id, session_date, start_time, end_time, status, subject, focus_topic, notes, cancellation_deadline, created_at, updated_at)
			VALUES (:id, :tutor_id, :student_id, :session_date, :start_time, :end_time, :status, :subject, :focus_topic, :notes, :cancellation_deadline, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return nil
	})
	return mapBookingWriteError(err)
}

// UpdateTimeIfFree moves an active booking to a new interval and status, excluding itself
// from the conflict check.
func (r *BookingRepository) UpdateTimeIfFree(ctx context.Context, id string, date models.Date, start, end models.ClockTime, deadline *time.Time, status models.BookingStatus) (*models.Booking, error) {
	var updated models.Booking
	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		tutorID, err := lockTutorDayOfBooking(ctx, tx, id, date)
		if err != nil {
			return err
		}
		taken, err := hasConflict(ctx, tx, models.BookingConflictQuery{
			TutorID:          tutorID,
			SessionDate:      date,
			StartTime:        start,
			EndTime:          end,
			ExcludeBookingID: id,
		})
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		const query = `UPDATE bookings AS b SET session_date = $2, start_time = $3, end_time = $4, cancellation_deadline = $5, status = $6, updated_at = $7
			WHERE b.id = $1 AND b.status IN ('pending', 'confirmed')
			RETURNING ` + bookingColumns
		if err := tx.GetContext(ctx, &updated, query, id, date, start, end, deadline, status, time.Now().UTC()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStatusChanged
			}
			return fmt.Errorf("reschedule booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, mapBookingWriteError(err)
	}
	return &updated, nil
}

// lockTutorDayOfBooking locks the booking row and takes the advisory lock for its tutor on
// the target date, returning the tutor id.
func lockTutorDayOfBooking(ctx context.Context, tx *sqlx.Tx, id string, date models.Date) (string, error) {
	var tutorID string
	if err := tx.GetContext(ctx, &tutorID, `SELECT tutor_id FROM bookings WHERE id = $1 FOR UPDATE`, id); err != nil {
		return "", err
	}
	return tutorID, lockTutorDay(ctx, tx, tutorID, date)
}

func mapBookingWriteError(err error) error {
	if err == nil {
		return nil
	}
	if database.HasCode(err, database.CodeExclusionViolation, database.CodeUniqueViolation) {
		return ErrSlotTaken
	}
	return err
}

// FindByID fetches a booking with both parties' display names.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.BookingView, error) {
	var booking models.BookingView
	if err := r.db.GetContext(ctx, &booking, bookingViewSelect+` WHERE b.id = $1`, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns bookings matching filter in one joined query along with the total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingView, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("b.tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("b.session_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("b.session_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	where := " WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY b.session_date %s, b.start_time %s LIMIT %d OFFSET %d", bookingViewSelect, where, order, order, size, (page-1)*size)
	var bookings []models.BookingView
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM bookings b"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// UpdateStatus moves the booking to next only if its current status is one of from.
// It returns ErrStatusChanged when no row matched.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from []models.BookingStatus, next models.BookingStatus, actorID string) (*models.Booking, error) {
	now := time.Now().UTC()
	var cancelledAt *time.Time
	var cancelledBy *string
	if next == models.BookingCancelled {
		cancelledAt = &now
		cancelledBy = &actorID
	}

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	const query = `UPDATE bookings AS b SET status = $2, cancelled_at = COALESCE($3, b.cancelled_at), cancelled_by = COALESCE($4, b.cancelled_by), updated_at = $5
		WHERE b.id = $1 AND b.status = ANY($6)
		RETURNING ` + bookingColumns
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id, next, cancelledAt, cancelledBy, now, pq.Array(allowed)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	return &booking, nil
}

// CompleteDue marks confirmed bookings whose end has passed as completed and returns them
// joined with both parties.
func (r *BookingRepository) CompleteDue(ctx context.Context, now time.Time) ([]models.BookingView, error) {
	query := `WITH done AS (
		UPDATE bookings SET status = 'completed', updated_at = $2
		WHERE status = 'confirmed' AND (session_date + end_time) <= $1::timestamp
		RETURNING *
	) ` + strings.Replace(bookingViewSelect, "FROM bookings b", "FROM done b", 1)
	var bookings []models.BookingView
	if err := r.db.SelectContext(ctx, &bookings, query, now.Format("2006-01-02 15:04:05"), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("complete due bookings: %w", err)
	}
	return bookings, nil
}

// CountByStatus groups all bookings by status.
func (r *BookingRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, `SELECT status, COUNT(*) AS total FROM bookings GROUP BY status ORDER BY status`); err != nil {
		return nil, fmt.Errorf("count bookings by status: %w", err)
	}
	return counts, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
