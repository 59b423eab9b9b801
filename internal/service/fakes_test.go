package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

// fakeBookingRepo keeps bookings in memory and serialises check-and-insert with a mutex,
// mirroring the advisory lock taken by the SQL repository.
type fakeBookingRepo struct {
	mu        sync.Mutex
	seq       int
	bookings  map[string]*models.Booking
	tutorUser map[string]string
	names     map[string]string
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[string]*models.Booking{}, tutorUser: map[string]string{}, names: map[string]string{}}
}

func (f *fakeBookingRepo) conflictLocked(q models.BookingConflictQuery) bool {
	for _, b := range f.bookings {
		if b.TutorID != q.TutorID || b.SessionDate.String() != q.SessionDate.String() || b.ID == q.ExcludeBookingID {
			continue
		}
		if b.Status != models.BookingPending && b.Status != models.BookingConfirmed {
			continue
		}
		if Overlaps(q.StartTime, q.EndTime, b.StartTime, b.EndTime) {
			return true
		}
	}
	return false
}

func (f *fakeBookingRepo) HasConflict(_ context.Context, q models.BookingConflictQuery) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conflictLocked(q), nil
}

func (f *fakeBookingRepo) CreateIfFree(_ context.Context, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictLocked(models.BookingConflictQuery{TutorID: booking.TutorID, SessionDate: booking.SessionDate, StartTime: booking.StartTime, EndTime: booking.EndTime}) {
		return repository.ErrSlotTaken
	}
	f.seq++
	booking.ID = fmt.Sprintf("booking-%d", f.seq)
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt
	stored := *booking
	f.bookings[booking.ID] = &stored
	return nil
}

func (f *fakeBookingRepo) UpdateTimeIfFree(_ context.Context, id string, date models.Date, start, end models.ClockTime, deadline *time.Time, status models.BookingStatus) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if f.conflictLocked(models.BookingConflictQuery{TutorID: b.TutorID, SessionDate: date, StartTime: start, EndTime: end, ExcludeBookingID: id}) {
		return nil, repository.ErrSlotTaken
	}
	if b.Status.Terminal() {
		return nil, repository.ErrStatusChanged
	}
	b.SessionDate, b.StartTime, b.EndTime, b.CancellationDeadline, b.Status = date, start, end, deadline, status
	out := *b
	return &out, nil
}

func (f *fakeBookingRepo) view(b *models.Booking) models.BookingView {
	userID := f.tutorUser[b.TutorID]
	return models.BookingView{Booking: *b, TutorUserID: userID, TutorName: f.names[userID], StudentName: f.names[b.StudentID]}
}

func (f *fakeBookingRepo) FindByID(_ context.Context, id string) (*models.BookingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	v := f.view(b)
	return &v, nil
}

func (f *fakeBookingRepo) List(_ context.Context, filter models.BookingFilter) ([]models.BookingView, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BookingView
	for _, b := range f.bookings {
		if filter.StudentID != "" && b.StudentID != filter.StudentID {
			continue
		}
		if filter.TutorID != "" && b.TutorID != filter.TutorID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, f.view(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeBookingRepo) UpdateStatus(_ context.Context, id string, from []models.BookingStatus, next models.BookingStatus, actorID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrStatusChanged
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = next
			if next == models.BookingCancelled {
				now := time.Now().UTC()
				b.CancelledAt = &now
				b.CancelledBy = &actorID
			}
			out := *b
			return &out, nil
		}
	}
	return nil, repository.ErrStatusChanged
}

func (f *fakeBookingRepo) CompleteDue(_ context.Context, now time.Time) ([]models.BookingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var done []models.BookingView
	for _, b := range f.bookings {
		if b.Status != models.BookingConfirmed {
			continue
		}
		if b.EndTime.On(b.SessionDate.Time, now.Location()).After(now) {
			continue
		}
		b.Status = models.BookingCompleted
		done = append(done, f.view(b))
	}
	return done, nil
}

func (f *fakeBookingRepo) active(tutorID string, date models.Date) []models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.TutorID == tutorID && b.SessionDate.String() == date.String() {
			out = append(out, *b)
		}
	}
	return out
}

type fakeAvailabilityRepo struct {
	mu       sync.Mutex
	seq      int
	windows  map[string]*models.AvailabilityWindow
	bookings *fakeBookingRepo
}

func newFakeAvailabilityRepo(bookings *fakeBookingRepo) *fakeAvailabilityRepo {
	return &fakeAvailabilityRepo{windows: map[string]*models.AvailabilityWindow{}, bookings: bookings}
}

func (f *fakeAvailabilityRepo) add(tutorID string, day int, start, end models.ClockTime) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("window-%d", f.seq)
	f.windows[id] = &models.AvailabilityWindow{ID: id, TutorID: tutorID, DayOfWeek: day, StartTime: start, EndTime: end, IsAvailable: true}
}

func (f *fakeAvailabilityRepo) ListByTutor(_ context.Context, tutorID string) ([]models.AvailabilityWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AvailabilityWindow
	for _, w := range f.windows {
		if w.TutorID == tutorID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAvailabilityRepo) FindByID(_ context.Context, id string) (*models.AvailabilityWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *w
	return &out, nil
}

func (f *fakeAvailabilityRepo) Create(_ context.Context, window *models.AvailabilityWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	window.ID = fmt.Sprintf("window-%d", f.seq)
	stored := *window
	f.windows[window.ID] = &stored
	return nil
}

func (f *fakeAvailabilityRepo) Update(_ context.Context, window *models.AvailabilityWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *window
	f.windows[window.ID] = &stored
	return nil
}

func (f *fakeAvailabilityRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, id)
	return nil
}

func (f *fakeAvailabilityRepo) DaySnapshot(ctx context.Context, tutorID string, date models.Date) ([]models.AvailabilityWindow, []models.Booking, error) {
	windows, _ := f.ListByTutor(ctx, tutorID)
	var bookings []models.Booking
	if f.bookings != nil {
		bookings = f.bookings.active(tutorID, date)
	}
	return windows, bookings, nil
}

type fakeTutorLookup struct {
	tutors []models.Tutor
}

func (f *fakeTutorLookup) FindByID(_ context.Context, id string) (*models.Tutor, error) {
	for i := range f.tutors {
		if f.tutors[i].ID == id {
			t := f.tutors[i]
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTutorLookup) FindByUserID(_ context.Context, userID string) (*models.Tutor, error) {
	for i := range f.tutors {
		if f.tutors[i].UserID == userID {
			t := f.tutors[i]
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeProfiles struct {
	profiles map[string]models.Profile
}

func (f *fakeProfiles) FindByUserID(_ context.Context, userID string) (*models.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

type recordingNotifications struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
}

func (r *recordingNotifications) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, *n)
	return nil
}

func (r *recordingNotifications) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.items...)
}

type recordingPayments struct {
	mu      sync.Mutex
	settled map[string]models.PaymentStatus
}

func (r *recordingPayments) Settle(_ context.Context, bookingID string, status models.PaymentStatus) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled == nil {
		r.settled = map[string]models.PaymentStatus{}
	}
	r.settled[bookingID] = status
	return &models.Payment{ID: "pay-" + bookingID, BookingID: bookingID, PayerID: "student-1", Amount: 50, Status: status}, nil
}

func (r *recordingPayments) statusOf(bookingID string) models.PaymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settled[bookingID]
}
