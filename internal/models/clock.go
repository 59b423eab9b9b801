package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day stored as minutes since midnight. 24:00 is a
// valid end-of-day value.
type ClockTime int

const (
	MinutesPerHour           = 60
	EndOfDay       ClockTime = 24 * MinutesPerHour
	dateLayout               = "2006-01-02"
)

// NewClockTime builds a ClockTime from hours and minutes.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*MinutesPerHour + minute)
}

// ParseClockTime accepts HH:MM or HH:MM:SS. Seconds are ignored.
func ParseClockTime(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return NewClockTime(hour, minute), nil
}

// Hour returns the hour component.
func (t ClockTime) Hour() int { return int(t) / MinutesPerHour }

// Minute returns the minute component.
func (t ClockTime) Minute() int { return int(t) % MinutesPerHour }

// Valid reports whether t lies within [00:00, 24:00].
func (t ClockTime) Valid() bool { return t >= 0 && t <= EndOfDay }

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On combines t with the calendar day of date in loc.
func (t ClockTime) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(t) * time.Minute)
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time as a Postgres time literal.
func (t ClockTime) Value() (driver.Value, error) {
	if t == EndOfDay {
		return "24:00:00", nil
	}
	return t.String() + ":00", nil
}

// Scan reads a Postgres time column.
func (t *ClockTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*t = NewClockTime(v.Hour(), v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case nil:
		return fmt.Errorf("clock time cannot be null")
	default:
		return fmt.Errorf("unsupported type %T for ClockTime", value)
	}
}

func (t *ClockTime) scanString(raw string) error {
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate truncates tm to its calendar day in UTC.
func NewDate(tm time.Time) Date {
	y, m, d := tm.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	tm, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return Date{tm}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

// Before reports whether d is a strictly earlier calendar day than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("unsupported type %T for Date", value)
	}
}
