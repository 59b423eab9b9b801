package service

import (
	"sort"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// SlotLength is the fixed duration of a generated slot.
const SlotLength = models.ClockTime(models.MinutesPerHour)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd models.ClockTime) bool {
	return aStart < bEnd && bStart < aEnd
}

// GenerateSlots derives the hourly slots of date from the tutor's windows minus the
// non-cancelled bookings. Slots shared by overlapping windows collapse by start time with
// their availability AND-ed. The result is ordered by start time and depends only on its inputs.
func GenerateSlots(date models.Date, windows []models.AvailabilityWindow, bookings []models.Booking) []models.Slot {
	weekday := int(date.Weekday())
	byStart := make(map[models.ClockTime]int)
	slots := make([]models.Slot, 0)

	for _, window := range windows {
		if window.DayOfWeek != weekday || !window.IsAvailable || window.StartTime >= window.EndTime {
			continue
		}
		first := window.StartTime.Hour()
		last := (int(window.EndTime) + models.MinutesPerHour - 1) / models.MinutesPerHour
		for h := first; h < last; h++ {
			start := models.NewClockTime(h, 0)
			end := start + SlotLength
			if !window.Contains(start, end) {
				continue
			}
			available := !occupied(start, end, bookings)
			if idx, ok := byStart[start]; ok {
				slots[idx].Available = slots[idx].Available && available
				continue
			}
			byStart[start] = len(slots)
			slots = append(slots, models.Slot{StartTime: start, EndTime: end, Available: available})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots
}

func occupied(start, end models.ClockTime, bookings []models.Booking) bool {
	for _, b := range bookings {
		if b.Status == models.BookingCancelled {
			continue
		}
		if Overlaps(start, end, b.StartTime, b.EndTime) {
			return true
		}
	}
	return false
}

// withinAvailability reports whether [start, end) fits entirely inside one window of the weekday.
func withinAvailability(date models.Date, windows []models.AvailabilityWindow, start, end models.ClockTime) bool {
	weekday := int(date.Weekday())
	for _, window := range windows {
		if window.DayOfWeek == weekday && window.Contains(start, end) {
			return true
		}
	}
	return false
}
