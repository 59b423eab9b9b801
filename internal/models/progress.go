package models

import (
	"fmt"
	"time"
)

// SkillLevel is a tutor's assessment of a learner after a session.
type SkillLevel string

const (
	SkillNeedsSupport SkillLevel = "Needs support"
	SkillSatisfactory SkillLevel = "Satisfactory"
	SkillGood         SkillLevel = "Good"
	SkillExcellent    SkillLevel = "Excellent"
)

// SkillLevels lists the levels from lowest to highest.
var SkillLevels = []SkillLevel{SkillNeedsSupport, SkillSatisfactory, SkillGood, SkillExcellent}

// ParseSkillLevel validates raw against the known levels.
func ParseSkillLevel(raw string) (SkillLevel, error) {
	level := SkillLevel(raw)
	if level.Ordinal() == 0 {
		return "", fmt.Errorf("unknown skill level %q", raw)
	}
	return level, nil
}

// Ordinal maps the level onto 1..4 for trend charts; unknown levels map to 0.
func (l SkillLevel) Ordinal() int {
	switch l {
	case SkillNeedsSupport:
		return 1
	case SkillSatisfactory:
		return 2
	case SkillGood:
		return 3
	case SkillExcellent:
		return 4
	default:
		return 0
	}
}

// ProgressEntry is a tutor's record for one completed booking.
type ProgressEntry struct {
	ID          string     `db:"id" json:"id"`
	BookingID   string     `db:"booking_id" json:"booking_id"`
	LearnerID   string     `db:"learner_id" json:"learner_id"`
	TutorID     string     `db:"tutor_id" json:"tutor_id"`
	Subject     string     `db:"subject" json:"subject"`
	SessionDate Date       `db:"session_date" json:"session_date"`
	SkillLevel  SkillLevel `db:"skill_level" json:"skill_level"`
	Note        string     `db:"note" json:"note"`
	Homework    *string    `db:"homework" json:"homework,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	TutorName   string     `db:"tutor_name" json:"tutor_name,omitempty"`
}

// ProgressFilter narrows progress listings.
type ProgressFilter struct {
	LearnerID string
	Subject   string
}

// ChartPoint is one session on a subject trend line.
type ChartPoint struct {
	SessionDate Date       `json:"session_date"`
	SkillLevel  SkillLevel `json:"skill_level"`
	Ordinal     int        `json:"ordinal"`
}

// SubjectSeries groups chart points by subject.
type SubjectSeries struct {
	Subject string       `json:"subject"`
	Points  []ChartPoint `json:"points"`
	Latest  int          `json:"latest"`
	Average float64      `json:"average"`
}

// TutorSession is a completed booking as seen by its tutor when recording progress.
type TutorSession struct {
	BookingID   string    `db:"booking_id" json:"booking_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	Subject     *string   `db:"subject" json:"subject,omitempty"`
	SessionDate Date      `db:"session_date" json:"session_date"`
	StartTime   ClockTime `db:"start_time" json:"start_time"`
	EndTime     ClockTime `db:"end_time" json:"end_time"`
	HasProgress bool      `db:"has_progress" json:"has_progress"`
}

// LearningGoal is a tutor-set objective for a learner.
type LearningGoal struct {
	ID           string    `db:"id" json:"id"`
	LearnerID    string    `db:"learner_id" json:"learner_id"`
	TutorID      string    `db:"tutor_id" json:"tutor_id"`
	Subject      string    `db:"subject" json:"subject"`
	GoalText     string    `db:"goal_text" json:"goal_text"`
	TargetDate   *Date     `db:"target_date" json:"target_date,omitempty"`
	IsAchieved   bool      `db:"is_achieved" json:"is_achieved"`
	AchievedDate *Date     `db:"achieved_date" json:"achieved_date,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
