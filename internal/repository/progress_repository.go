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

// ErrDuplicateProgress reports a second progress entry for the same booking.
var ErrDuplicateProgress = errors.New("progress already recorded for booking")

const progressSelect = `SELECT p.id, p.booking_id, p.learner_id, p.tutor_id, p.subject, p.session_date, p.skill_level,
	p.note, p.homework, p.created_at, COALESCE(tp.full_name, '') AS tutor_name
	FROM learner_progress p
	JOIN tutors t ON t.id = p.tutor_id
	LEFT JOIN profiles tp ON tp.user_id = t.user_id`

// ProgressRepository persists the progress ledger.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs a ProgressRepository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Create inserts an entry. A unique violation on booking_id maps to ErrDuplicateProgress.
func (r *ProgressRepository) Create(ctx context.Context, entry *models.ProgressEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO learner_progress (id, booking_id, learner_id, tutor_id, subject, session_date, skill_level, note, homework, created_at)
		VALUES (:id, :booking_id, :learner_id, :tutor_id, :subject, :session_date, :skill_level, :note, :homework, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		if database.HasCode(err, database.CodeUniqueViolation) {
			return ErrDuplicateProgress
		}
		return fmt.Errorf("create progress entry: %w", err)
	}
	return nil
}

// List returns entries for a learner, optionally for one subject, oldest session first.
func (r *ProgressRepository) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressEntry, error) {
	query := progressSelect + ` WHERE p.learner_id = $1`
	args := []interface{}{filter.LearnerID}
	if filter.Subject != "" {
		query += ` AND p.subject = $2`
		args = append(args, filter.Subject)
	}
	query += ` ORDER BY p.session_date ASC, p.created_at ASC`

	var entries []models.ProgressEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list progress entries: %w", err)
	}
	return entries, nil
}

// TutorSessions lists a tutor's completed bookings flagged with whether progress exists.
func (r *ProgressRepository) TutorSessions(ctx context.Context, tutorID string) ([]models.TutorSession, error) {
	const query = `SELECT b.id AS booking_id, b.student_id, COALESCE(sp.full_name, '') AS student_name, b.subject,
		b.session_date, b.start_time, b.end_time, (p.id IS NOT NULL) AS has_progress
		FROM bookings b
		LEFT JOIN learner_progress p ON p.booking_id = b.id
		LEFT JOIN profiles sp ON sp.user_id = b.student_id
		WHERE b.tutor_id = $1 AND b.status = 'completed'
		ORDER BY b.session_date DESC, b.start_time DESC`
	var sessions []models.TutorSession
	if err := r.db.SelectContext(ctx, &sessions, query, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor sessions: %w", err)
	}
	return sessions, nil
}
