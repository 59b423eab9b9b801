package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

const defaultPaymentMethod = "mock_card"

type paymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByBooking(ctx context.Context, bookingID string) (*models.Payment, error)
	ListByPayer(ctx context.Context, payerID string) ([]models.Payment, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.Payment, error)
	TotalsByTutor(ctx context.Context, tutorID string) ([]models.PaymentTotal, error)
}

// PaymentService runs the mocked escrow flow: funds are held at payment time and
// released or refunded when the booking completes or is cancelled.
type PaymentService struct {
	repo     paymentRepository
	bookings bookingReader
	tutors   tutorLookup
	effects  *SideEffects
	logger   *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, bookings bookingReader, tutors tutorLookup, effects *SideEffects, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, bookings: bookings, tutors: tutors, effects: effects, logger: logger}
}

// Pay holds the session price in escrow. One payment per booking.
func (s *PaymentService) Pay(ctx context.Context, actor models.Identity, bookingID, method string) (*models.Payment, error) {
	if actor.Role != models.RoleStudent {
		return nil, forbidden("only students pay for sessions")
	}
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if booking.StudentID != actor.UserID {
		return nil, forbidden("booking belongs to another student")
	}
	if booking.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "booking is no longer payable")
	}
	tutor, err := s.tutors.FindByID(ctx, booking.TutorID)
	if err != nil {
		return nil, lookupError(err, "tutor not found", "failed to load tutor")
	}

	method = strings.TrimSpace(method)
	if method == "" {
		method = defaultPaymentMethod
	}
	payment := &models.Payment{
		BookingID:     booking.ID,
		PayerID:       actor.UserID,
		TutorID:       tutor.ID,
		Amount:        SessionPrice(tutor.HourlyRate, booking.StartTime, booking.EndTime),
		PaymentMethod: method,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "booking already paid")
		}
		return nil, appErrors.Internal(err, "failed to record payment")
	}
	s.logger.Info("payment held", zap.String("booking_id", booking.ID), zap.Float64("amount", payment.Amount))
	s.effects.Publish(ctx, realtime.TablePayments, realtime.OpInsert, payment.ID, actor.UserID, tutor.UserID)
	return payment, nil
}

// ForBooking returns the payment of a booking visible to its participants.
func (s *PaymentService) ForBooking(ctx context.Context, actor models.Identity, bookingID string) (*models.Payment, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if !actor.IsAdmin() && booking.StudentID != actor.UserID && booking.TutorUserID != actor.UserID {
		return nil, forbidden("not a participant of this booking")
	}
	payment, err := s.repo.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "payment not found", "failed to load payment")
	}
	return payment, nil
}

// History lists the caller's payments; tutors see payments made to them.
func (s *PaymentService) History(ctx context.Context, actor models.Identity) ([]models.Payment, error) {
	var (
		items []models.Payment
		err   error
	)
	if actor.Role == models.RoleTutor {
		tutor, lookupErr := s.tutors.FindByUserID(ctx, actor.UserID)
		if lookupErr != nil {
			return nil, lookupError(lookupErr, "tutor profile not found", "failed to load tutor profile")
		}
		items, err = s.repo.ListByTutor(ctx, tutor.ID)
	} else {
		items, err = s.repo.ListByPayer(ctx, actor.UserID)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list payments")
	}
	return items, nil
}

// Earnings summarises a tutor's payments by escrow status.
func (s *PaymentService) Earnings(ctx context.Context, actor models.Identity) (*models.EarningsSummary, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("earnings are only available to tutors")
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	totals, err := s.repo.TotalsByTutor(ctx, tutor.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to summarise earnings")
	}
	return SummariseEarnings(tutor.ID, totals), nil
}

// SummariseEarnings folds per-status totals into one summary.
func SummariseEarnings(tutorID string, totals []models.PaymentTotal) *models.EarningsSummary {
	summary := &models.EarningsSummary{TutorID: tutorID}
	for _, t := range totals {
		switch t.Status {
		case models.PaymentHeld:
			summary.Held += t.Amount
		case models.PaymentReleased:
			summary.Released += t.Amount
			summary.Sessions += t.Count
		case models.PaymentRefunded:
			summary.Refunded += t.Amount
		}
	}
	return summary
}

// SessionPrice is the hourly rate times the session length, rounded to cents.
func SessionPrice(hourlyRate float64, start, end models.ClockTime) float64 {
	minutes := float64(end - start)
	if minutes <= 0 || hourlyRate <= 0 {
		return 0
	}
	return math.Round(hourlyRate*minutes/float64(models.MinutesPerHour)*100) / 100
}
