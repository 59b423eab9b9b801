package realtime

import "time"

// Op is the kind of row change carried by a ChangeEvent.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Tables that emit change events.
const (
	TableBookings      = "bookings"
	TableNotifications = "notifications"
	TableMessages      = "messages"
	TableProgress      = "learner_progress"
	TablePayments      = "payment_transactions"
	TableTutors        = "tutors"
	TableReviews       = "reviews"
	TableCertificates  = "certificate_approvals"
)

// ChangeEvent notifies subscribers that a row changed. UserIDs lists the users allowed
// to observe it; admins observe every event.
type ChangeEvent struct {
	Table    string    `json:"table"`
	Op       Op        `json:"op"`
	RecordID string    `json:"record_id"`
	UserIDs  []string  `json:"user_ids"`
	At       time.Time `json:"at"`
}

func (e ChangeEvent) visibleTo(userID string) bool {
	for _, id := range e.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
