package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func newAvailabilityFixture() (*AvailabilityService, *fakeAvailabilityRepo) {
	repo := newFakeAvailabilityRepo(newFakeBookingRepo())
	tutors := &fakeTutorLookup{tutors: []models.Tutor{
		{ID: "tutor-1", UserID: tutorActor.UserID},
		{ID: "tutor-2", UserID: otherTutor.UserID},
	}}
	svc := NewAvailabilityService(repo, tutors, nil, zap.NewNop(), time.UTC)
	svc.now = func() time.Time { return time.Date(2030, 6, 3, 15, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestAvailabilityServiceWindowOwnership(t *testing.T) {
	svc, _ := newAvailabilityFixture()
	ctx := context.Background()

	created, err := svc.CreateWindow(ctx, tutorActor, AvailabilityRequest{DayOfWeek: 1, StartTime: ct(9, 0), EndTime: ct(12, 0)})
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", created.TutorID)
	assert.True(t, created.IsAvailable)

	_, err = svc.UpdateWindow(ctx, otherTutor, created.ID, AvailabilityRequest{DayOfWeek: 1, StartTime: ct(8, 0), EndTime: ct(12, 0)})
	assertAppError(t, err, appErrors.ErrForbidden)

	off := false
	updated, err := svc.UpdateWindow(ctx, adminActor, created.ID, AvailabilityRequest{DayOfWeek: 2, StartTime: ct(8, 0), EndTime: ct(12, 0), IsAvailable: &off})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.DayOfWeek)
	assert.False(t, updated.IsAvailable)

	_, err = svc.CreateWindow(ctx, studentActor, AvailabilityRequest{DayOfWeek: 1, StartTime: ct(9, 0), EndTime: ct(12, 0)})
	assertAppError(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.DeleteWindow(ctx, tutorActor, created.ID))
	windows, err := svc.ListWindows(ctx, "tutor-1")
	require.NoError(t, err)
	assert.Empty(t, windows)

	err = svc.DeleteWindow(ctx, tutorActor, created.ID)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestAvailabilityServiceRejectsInvalidWindows(t *testing.T) {
	svc, _ := newAvailabilityFixture()
	ctx := context.Background()

	cases := []AvailabilityRequest{
		{DayOfWeek: 7, StartTime: ct(9, 0), EndTime: ct(10, 0)},
		{DayOfWeek: -1, StartTime: ct(9, 0), EndTime: ct(10, 0)},
		{DayOfWeek: 1, StartTime: ct(10, 0), EndTime: ct(10, 0)},
		{DayOfWeek: 1, StartTime: ct(11, 0), EndTime: ct(10, 0)},
		{DayOfWeek: 1, StartTime: ct(9, 0), EndTime: models.ClockTime(25 * 60)},
	}
	for _, req := range cases {
		_, err := svc.CreateWindow(ctx, tutorActor, req)
		assertAppError(t, err, appErrors.ErrValidation)
	}
}

func TestAvailabilityServiceSlots(t *testing.T) {
	svc, repo := newAvailabilityFixture()
	ctx := context.Background()
	repo.add("tutor-1", 1, ct(9, 0), ct(12, 0))

	svc.now = func() time.Time { return time.Date(2030, 6, 3, 10, 30, 0, 0, time.UTC) }
	today, err := svc.Slots(ctx, "tutor-1", mustParseDate(t, "2030-06-03"))
	require.NoError(t, err)
	require.Len(t, today.Slots, 3)
	assert.False(t, today.Slots[0].Available, "09:00 has started")
	assert.False(t, today.Slots[1].Available, "10:00 has started")
	assert.True(t, today.Slots[2].Available, "11:00 is still ahead")

	next, err := svc.Slots(ctx, "tutor-1", mustParseDate(t, "2030-06-10"))
	require.NoError(t, err)
	for _, slot := range next.Slots {
		assert.True(t, slot.Available)
	}

	past, err := svc.Slots(ctx, "tutor-1", mustParseDate(t, "2030-05-27"))
	require.NoError(t, err)
	require.Len(t, past.Slots, 3)
	for _, slot := range past.Slots {
		assert.False(t, slot.Available)
	}

	_, err = svc.Slots(ctx, "", mustParseDate(t, "2030-06-03"))
	assertAppError(t, err, appErrors.ErrValidation)
}
