package models

import "time"

// Profile mirrors the identity provider's user with app-level attributes.
type Profile struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"full_name"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	AvatarURL     *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// UserSummary is a profile joined with its role for admin listings.
type UserSummary struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Role     *Role
	Search   string
	Page     int
	PageSize int
}

// ParentLink connects a parent account to a child learner.
type ParentLink struct {
	ID        string    `db:"id" json:"id"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	ChildID   string    `db:"child_id" json:"child_id"`
	ChildName string    `db:"child_name" json:"child_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Overview is the admin dashboard counter set.
type Overview struct {
	Users               int           `json:"users"`
	Tutors              int           `json:"tutors"`
	PendingTutors       int           `json:"pending_tutors"`
	PendingCertificates int           `json:"pending_certificates"`
	Bookings            []StatusCount `json:"bookings"`
	Reviews             int           `json:"reviews"`
	EscrowBalance       float64       `json:"escrow_balance"`
	System              SystemMetrics `json:"system"`
}

// NavigationDecision is the role gate's answer for a client route.
type NavigationDecision struct {
	Path       string `json:"path"`
	Allowed    bool   `json:"allowed"`
	RedirectTo string `json:"redirect_to,omitempty"`
	Notice     string `json:"notice,omitempty"`
}

// SystemMetrics is a point-in-time view of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BookingsCreated          uint64    `json:"bookings_created"`
	SlotTakenRejections      uint64    `json:"slot_taken_rejections"`
	OpenStreams              int64     `json:"open_streams"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
