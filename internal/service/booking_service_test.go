package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

var (
	studentActor = models.Identity{UserID: "student-1", FullName: "Sam Student", Role: models.RoleStudent}
	otherStudent = models.Identity{UserID: "student-2", FullName: "Kim Student", Role: models.RoleStudent}
	tutorActor   = models.Identity{UserID: "tutor-user-1", FullName: "Ada Tutor", Role: models.RoleTutor}
	otherTutor   = models.Identity{UserID: "tutor-user-2", FullName: "Bob Tutor", Role: models.RoleTutor}
	adminActor   = models.Identity{UserID: "admin-1", FullName: "Root", Role: models.RoleAdmin}
)

type bookingFixture struct {
	svc           *BookingService
	availability  *AvailabilityService
	bookings      *fakeBookingRepo
	windows       *fakeAvailabilityRepo
	notifications *recordingNotifications
	payments      *recordingPayments
	bus           *realtime.MemoryBus
	events        *[]realtime.ChangeEvent
	now           time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	bookings := newFakeBookingRepo()
	bookings.tutorUser["tutor-1"] = tutorActor.UserID
	bookings.tutorUser["tutor-2"] = otherTutor.UserID
	bookings.names[tutorActor.UserID] = tutorActor.FullName
	bookings.names[studentActor.UserID] = studentActor.FullName

	windows := newFakeAvailabilityRepo(bookings)
	windows.add("tutor-1", 1, ct(9, 0), ct(12, 0))

	tutors := &fakeTutorLookup{tutors: []models.Tutor{
		{ID: "tutor-1", UserID: tutorActor.UserID, FullName: tutorActor.FullName, IsApproved: true, HourlyRate: 50},
		{ID: "tutor-2", UserID: otherTutor.UserID, FullName: otherTutor.FullName, IsApproved: false},
	}}
	profiles := &fakeProfiles{profiles: map[string]models.Profile{
		studentActor.UserID: {UserID: studentActor.UserID, EmailVerified: true},
		otherStudent.UserID: {UserID: otherStudent.UserID, EmailVerified: false},
	}}

	bus := realtime.NewMemoryBus()
	var mu sync.Mutex
	events := []realtime.ChangeEvent{}
	require.NoError(t, bus.StartForwarder(context.Background(), func(ev realtime.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}))

	notifications := &recordingNotifications{}
	payments := &recordingPayments{}
	effects := NewSideEffects(notifications, payments, bus, nil, zap.NewNop())

	now := time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)
	availability := NewAvailabilityService(windows, tutors, nil, zap.NewNop(), time.UTC)
	availability.now = func() time.Time { return now }
	svc := NewBookingService(bookings, tutors, profiles, availability, effects, nil, nil, zap.NewNop(), BookingPolicy{
		CancellationWindow:  24 * time.Hour,
		RequireVerification: true,
		Location:            time.UTC,
	})
	svc.now = func() time.Time { return now }

	return &bookingFixture{
		svc:           svc,
		availability:  availability,
		bookings:      bookings,
		windows:       windows,
		notifications: notifications,
		payments:      payments,
		bus:           bus,
		events:        &events,
		now:           now,
	}
}

func (f *bookingFixture) book(t *testing.T, actor models.Identity, date string, start, end models.ClockTime) (*models.BookingView, error) {
	t.Helper()
	return f.svc.Create(context.Background(), actor, CreateBookingRequest{
		TutorID:     "tutor-1",
		SessionDate: mustParseDate(t, date),
		StartTime:   start,
		EndTime:     end,
	})
}

func assertAppError(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, want.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceMondayScenario(t *testing.T) {
	f := newBookingFixture(t)
	const monday = "2030-06-03"

	existing, err := f.book(t, studentActor, monday, ct(10, 0), ct(11, 0))
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), tutorActor, existing.ID)
	require.NoError(t, err)

	_, err = f.book(t, studentActor, monday, ct(9, 0), ct(10, 0))
	assert.NoError(t, err, "09:00-10:00 ends where the confirmed booking starts")

	_, err = f.book(t, studentActor, monday, ct(10, 30), ct(11, 30))
	assertAppError(t, err, appErrors.ErrSlotTaken)

	_, err = f.book(t, studentActor, monday, ct(11, 0), ct(12, 0))
	assert.NoError(t, err, "11:00-12:00 starts where the confirmed booking ends")

	slots, err := f.availability.Slots(context.Background(), "tutor-1", mustParseDate(t, monday))
	require.NoError(t, err)
	require.Len(t, slots.Slots, 3)
	for _, slot := range slots.Slots {
		assert.False(t, slot.Available, "slot %s should be taken", slot.StartTime)
	}
}

func TestBookingServiceBackToBackBoundary(t *testing.T) {
	f := newBookingFixture(t)
	const monday = "2030-06-03"

	_, err := f.book(t, studentActor, monday, ct(9, 0), ct(10, 0))
	require.NoError(t, err)

	_, err = f.book(t, studentActor, monday, ct(10, 0), ct(11, 0))
	assert.NoError(t, err)

	_, err = f.book(t, studentActor, monday, ct(10, 59), ct(11, 30))
	assertAppError(t, err, appErrors.ErrSlotTaken)
}

func TestBookingServiceCreateThenFetchRoundTrip(t *testing.T) {
	f := newBookingFixture(t)
	subject := "Physics"
	notes := "  bring past papers  "

	created, err := f.svc.Create(context.Background(), studentActor, CreateBookingRequest{
		TutorID:     "tutor-1",
		SessionDate: mustParseDate(t, "2030-06-03"),
		StartTime:   ct(9, 0),
		EndTime:     ct(10, 0),
		Subject:     &subject,
		Notes:       &notes,
	})
	require.NoError(t, err)

	fetched, err := f.svc.Get(context.Background(), studentActor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, fetched.Status)
	assert.Equal(t, "tutor-1", fetched.TutorID)
	assert.Equal(t, studentActor.UserID, fetched.StudentID)
	assert.Equal(t, "2030-06-03", fetched.SessionDate.String())
	assert.Equal(t, ct(9, 0), fetched.StartTime)
	assert.Equal(t, ct(10, 0), fetched.EndTime)
	require.NotNil(t, fetched.Subject)
	assert.Equal(t, "Physics", *fetched.Subject)
	require.NotNil(t, fetched.Notes)
	assert.Equal(t, "bring past papers", *fetched.Notes)
	require.NotNil(t, fetched.CancellationDeadline)
	assert.Equal(t, time.Date(2030, 6, 2, 9, 0, 0, 0, time.UTC), *fetched.CancellationDeadline)

	notes2 := f.notifications.all()
	require.Len(t, notes2, 1)
	assert.Equal(t, tutorActor.UserID, notes2[0].UserID)
	assert.Equal(t, models.NotificationBookingRequest, notes2[0].Type)
	require.NotEmpty(t, *f.events)
	assert.Equal(t, realtime.TableBookings, (*f.events)[0].Table)
	assert.ElementsMatch(t, []string{studentActor.UserID, tutorActor.UserID}, (*f.events)[0].UserIDs)

	_, err = f.svc.Get(context.Background(), otherStudent, created.ID)
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestBookingServiceCreateValidation(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor models.Identity
		req   CreateBookingRequest
		want  *appErrors.Error
	}{
		{"tutor cannot book", tutorActor, CreateBookingRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrForbidden},
		{"missing tutor id", studentActor, CreateBookingRequest{SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrValidation},
		{"end before start", studentActor, CreateBookingRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(10, 0), EndTime: ct(9, 0)}, appErrors.ErrValidation},
		{"past session", studentActor, CreateBookingRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-05-27"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrValidation},
		{"outside availability", studentActor, CreateBookingRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(12, 0), EndTime: ct(13, 0)}, appErrors.ErrValidation},
		{"wrong weekday", studentActor, CreateBookingRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-04"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrValidation},
		{"unverified email", otherStudent, CreateBookingRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrPreconditionFailed},
		{"unknown tutor", studentActor, CreateBookingRequest{TutorID: "tutor-9", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrNotFound},
		{"unapproved tutor", studentActor, CreateBookingRequest{TutorID: "tutor-2", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0)}, appErrors.ErrPreconditionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.actor, tc.req)
			assertAppError(t, err, tc.want)
		})
	}
}

func TestBookingServiceConcurrentRequestsNeverOverlap(t *testing.T) {
	f := newBookingFixture(t)
	f.windows.add("tutor-1", 1, ct(6, 0), ct(22, 0))
	date := mustParseDate(t, "2030-06-03")

	type request struct{ start, end models.ClockTime }
	var requests []request
	for i := 0; i < 200; i++ {
		start := 6*60 + (i*37)%(14*60)
		requests = append(requests, request{models.ClockTime(start), models.ClockTime(start + 30 + (i*13)%60)})
	}

	var wg sync.WaitGroup
	for _, req := range requests {
		wg.Add(1)
		go func(req request) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), studentActor, CreateBookingRequest{TutorID: "tutor-1", SessionDate: date, StartTime: req.start, EndTime: req.end})
			if err != nil {
				assert.ErrorIs(t, err, appErrors.ErrSlotTaken)
			}
		}(req)
	}
	wg.Wait()

	active := f.bookings.active("tutor-1", date)
	require.NotEmpty(t, active)
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			assert.False(t, Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime),
				"bookings %s-%s and %s-%s overlap", a.StartTime, a.EndTime, b.StartTime, b.EndTime)
		}
	}
}

func TestBookingServiceLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		setup   []models.BookingStatus
		actor   models.Identity
		next    models.BookingStatus
		wantErr *appErrors.Error
	}{
		{"tutor confirms pending", nil, tutorActor, models.BookingConfirmed, nil},
		{"admin confirms pending", nil, adminActor, models.BookingConfirmed, nil},
		{"student cannot confirm", nil, studentActor, models.BookingConfirmed, appErrors.ErrForbidden},
		{"other tutor cannot confirm", nil, otherTutor, models.BookingConfirmed, appErrors.ErrForbidden},
		{"student cancels pending", nil, studentActor, models.BookingCancelled, nil},
		{"tutor cancels confirmed", []models.BookingStatus{models.BookingConfirmed}, tutorActor, models.BookingCancelled, nil},
		{"tutor completes confirmed", []models.BookingStatus{models.BookingConfirmed}, tutorActor, models.BookingCompleted, nil},
		{"pending cannot complete", nil, tutorActor, models.BookingCompleted, appErrors.ErrInvalidTransition},
		{"completed is terminal", []models.BookingStatus{models.BookingConfirmed, models.BookingCompleted}, adminActor, models.BookingCancelled, appErrors.ErrInvalidTransition},
		{"cancelled is terminal", []models.BookingStatus{models.BookingCancelled}, adminActor, models.BookingConfirmed, appErrors.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture(t)
			ctx := context.Background()
			created, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
			require.NoError(t, err)
			for _, status := range tc.setup {
				_, err := f.svc.Transition(ctx, adminActor, created.ID, status)
				require.NoError(t, err)
			}

			updated, err := f.svc.Transition(ctx, tc.actor, created.ID, tc.next)
			if tc.wantErr != nil {
				assertAppError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.next, updated.Status)
		})
	}
}

func TestBookingServiceStudentCancellationDeadline(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	created, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Date(2030, 6, 2, 9, 30, 0, 0, time.UTC) }
	_, err = f.svc.Cancel(ctx, studentActor, created.ID)
	assertAppError(t, err, appErrors.ErrPreconditionFailed)

	cancelled, err := f.svc.Cancel(ctx, tutorActor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, tutorActor.UserID, *cancelled.CancelledBy)
	assert.Equal(t, models.PaymentRefunded, f.payments.statusOf(created.ID))

	var cancelNotice *models.Notification
	for _, n := range f.notifications.all() {
		if n.Type == models.NotificationBookingCancelled {
			n := n
			cancelNotice = &n
		}
	}
	require.NotNil(t, cancelNotice)
	assert.Equal(t, studentActor.UserID, cancelNotice.UserID)
}

func TestBookingServiceCancelledSlotBecomesFree(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	first, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, studentActor, first.ID)
	require.NoError(t, err)

	_, err = f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	assert.NoError(t, err)
}

func TestBookingServiceReschedule(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	a, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)
	_, err = f.book(t, studentActor, "2030-06-03", ct(11, 0), ct(12, 0))
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(ctx, studentActor, a.ID, RescheduleRequest{SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 30), EndTime: ct(10, 30)})
	require.NoError(t, err, "overlap with its own old interval is ignored")
	assert.Equal(t, ct(9, 30), moved.StartTime)

	_, err = f.svc.Reschedule(ctx, studentActor, a.ID, RescheduleRequest{SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(10, 30), EndTime: ct(11, 30)})
	assertAppError(t, err, appErrors.ErrSlotTaken)

	_, err = f.svc.Reschedule(ctx, otherStudent, a.ID, RescheduleRequest{SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 0), EndTime: ct(10, 0)})
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestBookingServiceRescheduleLifecycleRules(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	booked, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, tutorActor, booked.ID)
	require.NoError(t, err)
	nextMonday := mustParseDate(t, "2030-06-10")

	_, err = f.svc.Reschedule(ctx, studentActor, booked.ID, RescheduleRequest{SessionDate: nextMonday, StartTime: ct(9, 0), EndTime: ct(12, 0)})
	assertAppError(t, err, appErrors.ErrValidation)

	moved, err := f.svc.Reschedule(ctx, studentActor, booked.ID, RescheduleRequest{SessionDate: nextMonday, StartTime: ct(10, 0), EndTime: ct(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, moved.Status, "tutor must confirm the new time")
	assert.Equal(t, ct(10, 0), moved.StartTime)

	_, err = f.svc.Confirm(ctx, tutorActor, booked.ID)
	require.NoError(t, err)
	byTutor, err := f.svc.Reschedule(ctx, tutorActor, booked.ID, RescheduleRequest{SessionDate: nextMonday, StartTime: ct(9, 0), EndTime: ct(10, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, byTutor.Status)

	f.svc.now = func() time.Time { return time.Date(2030, 6, 10, 8, 0, 0, 0, time.UTC) }
	_, err = f.svc.Cancel(ctx, studentActor, booked.ID)
	assertAppError(t, err, appErrors.ErrPreconditionFailed)
	_, err = f.svc.Reschedule(ctx, studentActor, booked.ID, RescheduleRequest{SessionDate: mustParseDate(t, "2030-06-17"), StartTime: ct(9, 0), EndTime: ct(10, 0)})
	assertAppError(t, err, appErrors.ErrPreconditionFailed)

	stored, err := f.svc.Get(ctx, adminActor, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, "2030-06-10", stored.SessionDate.String())
	assert.Equal(t, models.BookingConfirmed, stored.Status)
}

func TestBookingServiceSweepCompletesPastSessions(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	created, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)
	pending, err := f.book(t, studentActor, "2030-06-03", ct(10, 0), ct(11, 0))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, tutorActor, created.ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Date(2030, 6, 3, 9, 59, 0, 0, time.UTC) }
	count, err := f.svc.SweepCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "session still running")

	f.svc.now = func() time.Time { return time.Date(2030, 6, 3, 12, 0, 0, 0, time.UTC) }
	count, err = f.svc.SweepCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	done, err := f.svc.Get(ctx, adminActor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, done.Status)
	untouched, err := f.svc.Get(ctx, adminActor, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, untouched.Status)
	assert.Equal(t, models.PaymentReleased, f.payments.statusOf(created.ID))
}

func TestBookingServiceListScopesByRole(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	_, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)

	mine, page, err := f.svc.List(ctx, studentActor, models.BookingFilter{StudentID: "someone-else"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, 1, page.TotalCount)

	theirs, _, err := f.svc.List(ctx, models.Identity{UserID: "student-3", Role: models.RoleStudent}, models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	tutorView, _, err := f.svc.List(ctx, tutorActor, models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, tutorView, 1)

	bad := models.BookingStatus("archived")
	_, _, err = f.svc.List(ctx, adminActor, models.BookingFilter{Status: &bad})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestBookingServiceCheckConflict(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	created, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)

	taken, err := f.svc.CheckConflict(ctx, ConflictCheckRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 30), EndTime: ct(10, 30)})
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = f.svc.CheckConflict(ctx, ConflictCheckRequest{TutorID: "tutor-1", SessionDate: mustParseDate(t, "2030-06-03"), StartTime: ct(9, 30), EndTime: ct(10, 30), ExcludeBookingID: created.ID})
	require.NoError(t, err)
	assert.False(t, taken)
}
