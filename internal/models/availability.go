package models

import "time"

// AvailabilityWindow is a weekly recurring window in which a tutor accepts sessions.
type AvailabilityWindow struct {
	ID          string    `db:"id" json:"id"`
	TutorID     string    `db:"tutor_id" json:"tutor_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartTime   ClockTime `db:"start_time" json:"start_time"`
	EndTime     ClockTime `db:"end_time" json:"end_time"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether [start, end) lies fully inside the window.
func (w AvailabilityWindow) Contains(start, end ClockTime) bool {
	return w.IsAvailable && start >= w.StartTime && end <= w.EndTime
}

// Slot is a one-hour bookable interval on a given date.
type Slot struct {
	StartTime ClockTime `json:"start_time"`
	EndTime   ClockTime `json:"end_time"`
	Available bool      `json:"available"`
}

// DaySlots is the slot listing for one tutor and date.
type DaySlots struct {
	TutorID string `json:"tutor_id"`
	Date    Date   `json:"date"`
	Slots   []Slot `json:"slots"`
}
