package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		allowed  bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingPending, false},
		{BookingCompleted, BookingCancelled, false},
		{BookingCompleted, BookingConfirmed, false},
		{BookingCancelled, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, BookingCompleted.Terminal())
	assert.True(t, BookingCancelled.Terminal())
	assert.False(t, BookingPending.Terminal())
}

func TestPredecessorsOf(t *testing.T) {
	assert.ElementsMatch(t, []BookingStatus{BookingPending, BookingConfirmed}, PredecessorsOf(BookingCancelled))
	assert.Equal(t, []BookingStatus{BookingConfirmed}, PredecessorsOf(BookingCompleted))
	assert.Equal(t, []BookingStatus{BookingPending}, PredecessorsOf(BookingConfirmed))
	assert.Empty(t, PredecessorsOf(BookingPending))
}

func TestParseRoleAndSkillLevel(t *testing.T) {
	role, err := ParseRole(" Tutor ")
	assert.NoError(t, err)
	assert.Equal(t, RoleTutor, role)
	_, err = ParseRole("parent")
	assert.Error(t, err)

	for i, level := range SkillLevels {
		assert.Equal(t, i+1, level.Ordinal())
	}
	_, err = ParseSkillLevel("Great")
	assert.Error(t, err)
}
