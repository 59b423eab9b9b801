package models

import (
	"time"

	"github.com/lib/pq"
)

// Tutor is a tutor's public profile.
type Tutor struct {
	ID               string         `db:"id" json:"id"`
	UserID           string         `db:"user_id" json:"user_id"`
	FullName         string         `db:"full_name" json:"full_name"`
	Bio              *string        `db:"bio" json:"bio,omitempty"`
	Subjects         pq.StringArray `db:"subjects" json:"subjects"`
	Qualifications   pq.StringArray `db:"qualifications" json:"qualifications"`
	Languages        pq.StringArray `db:"languages" json:"languages"`
	TeachingLevel    pq.StringArray `db:"teaching_level" json:"teaching_level"`
	TeachingLocation pq.StringArray `db:"teaching_location" json:"teaching_location"`
	EducationLevel   *string        `db:"education_level" json:"education_level,omitempty"`
	Gender           *string        `db:"gender" json:"gender,omitempty"`
	HourlyRate       float64        `db:"hourly_rate" json:"hourly_rate"`
	ExperienceYears  int            `db:"experience_years" json:"experience_years"`
	IsApproved       bool           `db:"is_approved" json:"is_approved"`
	Rating           float64        `db:"rating" json:"rating"`
	TotalReviews     int            `db:"total_reviews" json:"total_reviews"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// TutorFilter captures directory search criteria.
type TutorFilter struct {
	Search            string   `json:"search,omitempty"`
	Subjects          []string `json:"subjects,omitempty"`
	EducationLevel    string   `json:"education_level,omitempty"`
	TeachingLevel     string   `json:"teaching_level,omitempty"`
	TeachingLocation  string   `json:"teaching_location,omitempty"`
	Gender            string   `json:"gender,omitempty"`
	MinRating         *float64 `json:"min_rating,omitempty"`
	MaxHourlyRate     *float64 `json:"max_hourly_rate,omitempty"`
	IncludeUnapproved bool     `json:"include_unapproved,omitempty"`
	Page              int      `json:"page"`
	PageSize          int      `json:"page_size"`
	SortBy            string   `json:"sort_by,omitempty"`
	SortOrder         string   `json:"sort_order,omitempty"`
}

// Review is a student's rating of a tutor.
type Review struct {
	ID          string    `db:"id" json:"id"`
	TutorID     string    `db:"tutor_id" json:"tutor_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	BookingID   *string   `db:"booking_id" json:"booking_id,omitempty"`
	Rating      int       `db:"rating" json:"rating"`
	Comment     *string   `db:"comment" json:"comment,omitempty"`
	StudentName string    `db:"student_name" json:"student_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RatingSummary is the aggregate maintained on the tutor row.
type RatingSummary struct {
	Rating       float64 `db:"rating" json:"rating"`
	TotalReviews int     `db:"total_reviews" json:"total_reviews"`
}

// Certificate is an uploaded qualification awaiting or holding admin approval.
type Certificate struct {
	ID          string     `db:"id" json:"id"`
	TutorID     string     `db:"tutor_id" json:"tutor_id"`
	FileName    string     `db:"file_name" json:"file_name"`
	StorageKey  string     `db:"storage_key" json:"storage_key"`
	ContentType string     `db:"content_type" json:"content_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	IsApproved  bool       `db:"is_approved" json:"is_approved"`
	ApprovedBy  *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Resource is a learning material shared by a tutor.
type Resource struct {
	ID          string    `db:"id" json:"id"`
	TutorID     string    `db:"tutor_id" json:"tutor_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Subject     *string   `db:"subject" json:"subject,omitempty"`
	StorageKey  string    `db:"storage_key" json:"storage_key"`
	ContentType string    `db:"content_type" json:"content_type"`
	IsPublic    bool      `db:"is_public" json:"is_public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DownloadLink is a signed, short-lived link to a stored object.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
