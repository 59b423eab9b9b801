package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*models.Payment{}}
}

func (f *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[p.BookingID]; ok {
		return repository.ErrDuplicatePayment
	}
	p.ID = "payment-" + p.BookingID
	p.Status = models.PaymentHeld
	stored := *p
	f.payments[p.BookingID] = &stored
	return nil
}

func (f *fakePaymentRepo) FindByBooking(_ context.Context, bookingID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[bookingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *p
	return &out, nil
}

func (f *fakePaymentRepo) Settle(_ context.Context, bookingID string, status models.PaymentStatus) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[bookingID]
	if !ok || p.Status != models.PaymentHeld {
		return nil, sql.ErrNoRows
	}
	p.Status = status
	out := *p
	return &out, nil
}

func (f *fakePaymentRepo) ListByPayer(_ context.Context, payerID string) ([]models.Payment, error) {
	return f.filter(func(p *models.Payment) bool { return p.PayerID == payerID }), nil
}

func (f *fakePaymentRepo) ListByTutor(_ context.Context, tutorID string) ([]models.Payment, error) {
	return f.filter(func(p *models.Payment) bool { return p.TutorID == tutorID }), nil
}

func (f *fakePaymentRepo) TotalsByTutor(_ context.Context, tutorID string) ([]models.PaymentTotal, error) {
	byStatus := map[models.PaymentStatus]*models.PaymentTotal{}
	for _, p := range f.filter(func(p *models.Payment) bool { return p.TutorID == tutorID }) {
		total, ok := byStatus[p.Status]
		if !ok {
			total = &models.PaymentTotal{Status: p.Status}
			byStatus[p.Status] = total
		}
		total.Amount += p.Amount
		total.Count++
	}
	var out []models.PaymentTotal
	for _, total := range byStatus {
		out = append(out, *total)
	}
	return out, nil
}

func (f *fakePaymentRepo) filter(keep func(*models.Payment) bool) []models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if keep(p) {
			out = append(out, *p)
		}
	}
	return out
}

func TestSessionPrice(t *testing.T) {
	assert.Equal(t, 50.0, SessionPrice(50, ct(9, 0), ct(10, 0)))
	assert.Equal(t, 37.5, SessionPrice(25, ct(10, 30), ct(12, 0)))
	assert.Equal(t, 0.0, SessionPrice(50, ct(10, 0), ct(10, 0)))
	assert.Equal(t, 0.0, SessionPrice(-5, ct(9, 0), ct(10, 0)))
}

func TestPaymentEscrowFollowsBookingLifecycle(t *testing.T) {
	f := newBookingFixture(t)
	repo := newFakePaymentRepo()
	tutors := &fakeTutorLookup{tutors: []models.Tutor{{ID: "tutor-1", UserID: tutorActor.UserID, IsApproved: true, HourlyRate: 50}}}
	svc := NewPaymentService(repo, f.bookings, tutors, nil, zap.NewNop())
	ctx := context.Background()

	first, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)
	second, err := f.book(t, studentActor, "2030-06-03", ct(10, 30), ct(12, 0))
	require.NoError(t, err)

	paid, err := svc.Pay(ctx, studentActor, first.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentHeld, paid.Status)
	assert.Equal(t, 50.0, paid.Amount)
	assert.Equal(t, defaultPaymentMethod, paid.PaymentMethod)

	_, err = svc.Pay(ctx, studentActor, first.ID, "card")
	assertAppError(t, err, appErrors.ErrConflict)
	_, err = svc.Pay(ctx, otherStudent, second.ID, "card")
	assertAppError(t, err, appErrors.ErrForbidden)
	_, err = svc.Pay(ctx, tutorActor, second.ID, "card")
	assertAppError(t, err, appErrors.ErrForbidden)

	paidSecond, err := svc.Pay(ctx, studentActor, second.ID, "card")
	require.NoError(t, err)
	assert.Equal(t, 75.0, paidSecond.Amount)

	// Settlement normally runs through SideEffects; drive the repository the same way.
	_, err = repo.Settle(ctx, first.ID, models.PaymentReleased)
	require.NoError(t, err)
	_, err = repo.Settle(ctx, second.ID, models.PaymentRefunded)
	require.NoError(t, err)

	earnings, err := svc.Earnings(ctx, tutorActor)
	require.NoError(t, err)
	assert.Equal(t, 50.0, earnings.Released)
	assert.Equal(t, 75.0, earnings.Refunded)
	assert.Equal(t, 0.0, earnings.Held)
	assert.Equal(t, 1, earnings.Sessions)

	history, err := svc.History(ctx, studentActor)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	got, err := svc.ForBooking(ctx, tutorActor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentReleased, got.Status)
	_, err = svc.ForBooking(ctx, otherStudent, first.ID)
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.Earnings(ctx, studentActor)
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestPaymentRejectsTerminalBooking(t *testing.T) {
	f := newBookingFixture(t)
	svc := NewPaymentService(newFakePaymentRepo(), f.bookings, &fakeTutorLookup{tutors: []models.Tutor{{ID: "tutor-1", HourlyRate: 50}}}, nil, nil)

	booking, err := f.book(t, studentActor, "2030-06-03", ct(9, 0), ct(10, 0))
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), studentActor, booking.ID)
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), studentActor, booking.ID, "card")
	assertAppError(t, err, appErrors.ErrPreconditionFailed)
}

func TestSummariseEarnings(t *testing.T) {
	summary := SummariseEarnings("tutor-1", []models.PaymentTotal{
		{Status: models.PaymentHeld, Amount: 20, Count: 1},
		{Status: models.PaymentReleased, Amount: 150, Count: 3},
		{Status: models.PaymentRefunded, Amount: 40, Count: 1},
	})
	assert.Equal(t, &models.EarningsSummary{TutorID: "tutor-1", Held: 20, Released: 150, Refunded: 40, Sessions: 3}, summary)
}
