package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID          string    `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	SenderName  string    `db:"sender_name" json:"sender_name"`
	Content     string    `db:"content" json:"content"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Conversation summarises the latest exchange with one counter-party.
type Conversation struct {
	UserID        string    `db:"user_id" json:"user_id"`
	FullName      string    `db:"full_name" json:"full_name"`
	LastMessage   string    `db:"last_message" json:"last_message"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	Unread        int       `db:"unread" json:"unread"`
}

// NotificationType classifies inbox entries.
type NotificationType string

const (
	NotificationBookingRequest   NotificationType = "booking_request"
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationBookingCompleted NotificationType = "booking_completed"
	NotificationProgressUpdate   NotificationType = "progress_update"
	NotificationMessage          NotificationType = "message"
	NotificationPayment          NotificationType = "payment"
	NotificationCertificate      NotificationType = "certificate"
)

// Notification is one entry in a user's inbox.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	RelatedID *string          `db:"related_id" json:"related_id,omitempty"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
