package models

import "time"

// PaymentStatus tracks escrowed funds for a booking.
type PaymentStatus string

const (
	PaymentHeld     PaymentStatus = "held_in_escrow"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment is a mocked payment transaction tied to a booking.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	BookingID     string        `db:"booking_id" json:"booking_id"`
	PayerID       string        `db:"payer_id" json:"payer_id"`
	TutorID       string        `db:"tutor_id" json:"tutor_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Status        PaymentStatus `db:"status" json:"status"`
	PaymentMethod string        `db:"payment_method" json:"payment_method"`
	ReleasedAt    *time.Time    `db:"released_at" json:"released_at,omitempty"`
	RefundedAt    *time.Time    `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// EarningsSummary aggregates a tutor's payments by status.
type EarningsSummary struct {
	TutorID  string  `json:"tutor_id"`
	Held     float64 `json:"held_in_escrow"`
	Released float64 `json:"released"`
	Refunded float64 `json:"refunded"`
	Sessions int     `json:"sessions"`
}

// PaymentTotal is one status bucket of an earnings aggregation.
type PaymentTotal struct {
	Status PaymentStatus `db:"status"`
	Amount float64       `db:"amount"`
	Count  int           `db:"count"`
}
