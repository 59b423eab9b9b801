package models

import "time"

// BookingStatus tracks where a booking is in its lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// ActiveBookingStatuses are the statuses that occupy a tutor's time.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PredecessorsOf returns the statuses from which next is reachable in one step.
func PredecessorsOf(next BookingStatus) []BookingStatus {
	var out []BookingStatus
	for _, from := range []BookingStatus{BookingPending, BookingConfirmed} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

// Booking is a session request between a student and a tutor.
type Booking struct {
	ID                   string        `db:"id" json:"id"`
	TutorID              string        `db:"tutor_id" json:"tutor_id"`
	StudentID            string        `db:"student_id" json:"student_id"`
	SessionDate          Date          `db:"session_date" json:"session_date"`
	StartTime            ClockTime     `db:"start_time" json:"start_time"`
	EndTime              ClockTime     `db:"end_time" json:"end_time"`
	Status               BookingStatus `db:"status" json:"status"`
	Subject              *string       `db:"subject" json:"subject,omitempty"`
	FocusTopic           *string       `db:"focus_topic" json:"focus_topic,omitempty"`
	Notes                *string       `db:"notes" json:"notes,omitempty"`
	CancellationDeadline *time.Time    `db:"cancellation_deadline" json:"cancellation_deadline,omitempty"`
	CancelledAt          *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy          *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingView is a booking joined with the display names of both parties.
type BookingView struct {
	Booking
	TutorUserID string `db:"tutor_user_id" json:"tutor_user_id"`
	TutorName   string `db:"tutor_name" json:"tutor_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// Participants returns the user ids allowed to observe this booking.
func (b BookingView) Participants() []string {
	return []string{b.StudentID, b.TutorUserID}
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	StudentID string
	TutorID   string
	Status    *BookingStatus
	From      *Date
	To        *Date
	Page      int
	PageSize  int
	SortOrder string
}

// BookingConflictQuery is the input of the conflict guard.
type BookingConflictQuery struct {
	TutorID          string
	SessionDate      Date
	StartTime        ClockTime
	EndTime          ClockTime
	ExcludeBookingID string
}

// StatusCount is a grouped booking counter used by dashboards.
type StatusCount struct {
	Status BookingStatus `db:"status" json:"status"`
	Total  int           `db:"total" json:"total"`
}
