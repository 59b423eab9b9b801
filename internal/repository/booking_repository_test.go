package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

var bookingColumnNames = []string{"id", "tutor_id", "student_id", "session_date", "start_time", "end_time", "status",
	"subject", "focus_topic", "notes", "cancellation_deadline", "cancelled_at", "cancelled_by", "created_at", "updated_at"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func mustDate(t *testing.T, raw string) models.Date {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func sampleBooking(t *testing.T) *models.Booking {
	subject := "Maths"
	return &models.Booking{
		TutorID:     "tutor-1",
		StudentID:   "student-1",
		SessionDate: mustDate(t, "2025-06-02"),
		StartTime:   models.NewClockTime(10, 0),
		EndTime:     models.NewClockTime(11, 0),
		Status:      models.BookingPending,
		Subject:     &subject,
	}
}

func expectGuard(mock sqlmock.Sqlmock, taken bool) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("tutor-1|2025-06-02").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs("tutor-1", "2025-06-02", "10:00:00", "11:00:00", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(taken))
}

func TestBookingRepositoryCreateIfFreeInsertsWhenFree(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectGuard(mock, false)
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking := sampleBooking(t)
	require.NoError(t, repo.CreateIfFree(context.Background(), booking))
	assert.NotEmpty(t, booking.ID)
	assert.False(t, booking.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateIfFreeRejectsOverlap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectGuard(mock, true)
	mock.ExpectRollback()

	err := repo.CreateIfFree(context.Background(), sampleBooking(t))
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateIfFreeMapsExclusionViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectGuard(mock, false)
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(&pq.Error{Code: "23P01", Constraint: "bookings_no_overlap"})
	mock.ExpectRollback()

	err := repo.CreateIfFree(context.Background(), sampleBooking(t))
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryHasConflictExcludesBooking(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND id::text <> $5")).
		WithArgs("tutor-1", "2025-06-02", "10:30:00", "11:30:00", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := repo.HasConflict(context.Background(), models.BookingConflictQuery{
		TutorID:          "tutor-1",
		SessionDate:      mustDate(t, "2025-06-02"),
		StartTime:        models.NewClockTime(10, 30),
		EndTime:          models.NewClockTime(11, 30),
		ExcludeBookingID: "b-1",
	})
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindByIDJoinsNames(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now()
	cols := append(append([]string{}, bookingColumnNames...), "tutor_user_id", "tutor_name", "student_name")
	rows := sqlmock.NewRows(cols).AddRow("b-1", "tutor-1", "student-1", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "10:00:00", "11:00:00", "pending",
		"Maths", nil, nil, nil, nil, nil, now, now, "tutor-user-1", "Ada Tutor", "Sam Student")
	mock.ExpectQuery("LEFT JOIN profiles sp ON sp.user_id = b.student_id WHERE b.id = \\$1").
		WithArgs("b-1").
		WillReturnRows(rows)

	booking, err := repo.FindByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.Equal(t, models.NewClockTime(10, 0), booking.StartTime)
	assert.Equal(t, "2025-06-02", booking.SessionDate.String())
	assert.Equal(t, "Ada Tutor", booking.TutorName)
	assert.Equal(t, []string{"student-1", "tutor-user-1"}, booking.Participants())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatusCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery("UPDATE bookings AS b SET status = \\$2").
		WithArgs("b-1", "confirmed", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bookingColumnNames))

	_, err := repo.UpdateStatus(context.Background(), "b-1", []models.BookingStatus{models.BookingPending}, models.BookingConfirmed, "tutor-user-1")
	assert.ErrorIs(t, err, ErrStatusChanged)

	now := time.Now()
	mock.ExpectQuery("UPDATE bookings AS b SET status = \\$2").
		WithArgs("b-1", "cancelled", sqlmock.AnyArg(), "student-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bookingColumnNames).AddRow("b-1", "tutor-1", "student-1", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "10:00:00", "11:00:00", "cancelled",
			nil, nil, nil, nil, now, "student-1", now, now))

	booking, err := repo.UpdateStatus(context.Background(), "b-1", models.PredecessorsOf(models.BookingCancelled), models.BookingCancelled, "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, booking.Status)
	require.NotNil(t, booking.CancelledBy)
	assert.Equal(t, "student-1", *booking.CancelledBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateTimeIfFree(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT tutor_id FROM bookings WHERE id = \\$1 FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"tutor_id"}).AddRow("tutor-1"))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("tutor-1|2025-06-03").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (")).
		WithArgs("tutor-1", "2025-06-03", "14:00:00", "15:00:00", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.UpdateTimeIfFree(context.Background(), "b-1", mustDate(t, "2025-06-03"), models.NewClockTime(14, 0), models.NewClockTime(15, 0), nil, models.BookingPending)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	status := models.BookingConfirmed
	cols := append(append([]string{}, bookingColumnNames...), "tutor_user_id", "tutor_name", "student_name")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND b.student_id = $1 AND b.status = $2 ORDER BY b.session_date DESC, b.start_time DESC LIMIT 20 OFFSET 0")).
		WithArgs("student-1", "confirmed").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings b WHERE 1=1 AND b.student_id = $1 AND b.status = $2")).
		WithArgs("student-1", "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.BookingFilter{StudentID: "student-1", Status: &status})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCompleteDue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	cols := append(append([]string{}, bookingColumnNames...), "tutor_user_id", "tutor_name", "student_name")
	mock.ExpectQuery(regexp.QuoteMeta("(session_date + end_time) <= $1::timestamp")+".*FROM done b").
		WithArgs("2025-06-02 12:00:00", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b-1", "tutor-1", "student-1", now, "10:00:00", "11:00:00", "completed",
			nil, nil, nil, nil, nil, nil, now, now, "tutor-user-1", "Ada Tutor", "Sam Student"))

	done, err := repo.CompleteDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, models.BookingCompleted, done[0].Status)
	assert.Equal(t, "tutor-user-1", done[0].TutorUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
