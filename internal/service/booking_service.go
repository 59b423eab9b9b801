package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

type bookingRepository interface {
	HasConflict(ctx context.Context, q models.BookingConflictQuery) (bool, error)
	CreateIfFree(ctx context.Context, booking *models.Booking) error
	UpdateTimeIfFree(ctx context.Context, id string, date models.Date, start, end models.ClockTime, deadline *time.Time, status models.BookingStatus) (*models.Booking, error)
	FindByID(ctx context.Context, id string) (*models.BookingView, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingView, int, error)
	UpdateStatus(ctx context.Context, id string, from []models.BookingStatus, next models.BookingStatus, actorID string) (*models.Booking, error)
	CompleteDue(ctx context.Context, now time.Time) ([]models.BookingView, error)
}

type profileLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
}

type availabilityChecker interface {
	WithinAvailability(ctx context.Context, tutorID string, date models.Date, start, end models.ClockTime) (bool, error)
}

// BookingPolicy holds the lifecycle knobs.
type BookingPolicy struct {
	// CancellationWindow is how long before the session students lose the right to cancel.
	// Zero disables the deadline.
	CancellationWindow  time.Duration
	RequireVerification bool
	Location            *time.Location
}

// CreateBookingRequest is a student's session request.
type CreateBookingRequest struct {
	TutorID     string           `json:"tutor_id" validate:"required"`
	SessionDate models.Date      `json:"session_date"`
	StartTime   models.ClockTime `json:"start_time"`
	EndTime     models.ClockTime `json:"end_time"`
	Subject     *string          `json:"subject" validate:"omitempty,max=120"`
	FocusTopic  *string          `json:"focus_topic" validate:"omitempty,max=255"`
	Notes       *string          `json:"notes" validate:"omitempty,max=2000"`
}

// RescheduleRequest moves an active booking to another interval.
type RescheduleRequest struct {
	SessionDate models.Date      `json:"session_date"`
	StartTime   models.ClockTime `json:"start_time"`
	EndTime     models.ClockTime `json:"end_time"`
}

// ConflictCheckRequest is the input of the public conflict check.
type ConflictCheckRequest struct {
	TutorID          string           `json:"tutor_id" validate:"required"`
	SessionDate      models.Date      `json:"session_date"`
	StartTime        models.ClockTime `json:"start_time"`
	EndTime          models.ClockTime `json:"end_time"`
	ExcludeBookingID string           `json:"exclude_booking_id"`
}

// BookingService owns booking creation and the booking state machine.
type BookingService struct {
	repo         bookingRepository
	tutors       tutorLookup
	profiles     profileLookup
	availability availabilityChecker
	effects      *SideEffects
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	policy       BookingPolicy
	now          func() time.Time
}

// NewBookingService constructs BookingService.
func NewBookingService(repo bookingRepository, tutors tutorLookup, profiles profileLookup, availability availabilityChecker, effects *SideEffects, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, policy BookingPolicy) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &BookingService{
		repo:         repo,
		tutors:       tutors,
		profiles:     profiles,
		availability: availability,
		effects:      effects,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		policy:       policy,
		now:          time.Now,
	}
}

// Create books [start, end) on the tutor's calendar for the calling student. The conflict
// check and the insert happen atomically; a lost race yields SLOT_TAKEN.
func (s *BookingService) Create(ctx context.Context, actor models.Identity, req CreateBookingRequest) (*models.BookingView, error) {
	if actor.Role != models.RoleStudent {
		return nil, forbidden("only students can request bookings")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid booking payload")
	}
	if err := validateInterval(req.SessionDate, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if req.StartTime.On(req.SessionDate.Time, s.policy.Location).Before(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must start in the future")
	}
	if err := s.ensureVerified(ctx, actor); err != nil {
		return nil, err
	}

	tutor, err := s.tutors.FindByID(ctx, req.TutorID)
	if err != nil {
		return nil, lookupError(err, "tutor not found", "failed to load tutor")
	}
	if !tutor.IsApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "tutor is not accepting bookings yet")
	}
	if tutor.UserID == actor.UserID {
		return nil, forbidden("tutors cannot book themselves")
	}
	within, err := s.availability.WithinAvailability(ctx, tutor.ID, req.SessionDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !within {
		s.metrics.RecordBookingAttempt("rejected")
		return nil, appErrors.Clone(appErrors.ErrValidation, "requested time is outside the tutor's availability")
	}

	booking := &models.Booking{
		TutorID:              tutor.ID,
		StudentID:            actor.UserID,
		SessionDate:          req.SessionDate,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		Status:               models.BookingPending,
		Subject:              trimmedOrNil(req.Subject),
		FocusTopic:           trimmedOrNil(req.FocusTopic),
		Notes:                trimmedOrNil(req.Notes),
		CancellationDeadline: s.deadline(req.SessionDate, req.StartTime),
	}
	if err := s.repo.CreateIfFree(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.metrics.RecordBookingAttempt("slot_taken")
			s.logger.Info("booking rejected, slot taken",
				zap.String("tutor_id", tutor.ID),
				zap.String("date", req.SessionDate.String()),
				zap.String("start", req.StartTime.String()))
			return nil, appErrors.Wrap(err, appErrors.ErrSlotTaken.Code, appErrors.ErrSlotTaken.Status, appErrors.ErrSlotTaken.Message)
		}
		return nil, appErrors.Internal(err, "failed to create booking")
	}
	s.metrics.RecordBookingAttempt("created")
	s.logger.Info("booking created", zap.String("booking_id", booking.ID), zap.String("tutor_id", tutor.ID), zap.String("student_id", actor.UserID))

	view := &models.BookingView{Booking: *booking, TutorUserID: tutor.UserID, TutorName: tutor.FullName, StudentName: actor.FullName}
	s.effects.Notify(ctx, models.Notification{
		UserID:    tutor.UserID,
		Title:     "New Booking Request",
		Message:   fmt.Sprintf("%s requested a session on %s at %s.", displayName(actor.FullName, "A student"), booking.SessionDate, booking.StartTime),
		Type:      models.NotificationBookingRequest,
		RelatedID: &booking.ID,
	})
	s.effects.Publish(ctx, realtime.TableBookings, realtime.OpInsert, booking.ID, view.Participants()...)
	return view, nil
}

// Get returns a booking visible to the caller.
func (s *BookingService) Get(ctx context.Context, actor models.Identity, id string) (*models.BookingView, error) {
	view, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if !actor.IsAdmin() && actor.UserID != view.StudentID && actor.UserID != view.TutorUserID {
		return nil, forbidden("booking belongs to other users")
	}
	return view, nil
}

// List returns the caller's bookings. Admins see every booking matching filter.
func (s *BookingService) List(ctx context.Context, actor models.Identity, filter models.BookingFilter) ([]models.BookingView, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleTutor:
		tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
		}
		filter.TutorID = tutor.ID
		filter.StudentID = ""
	case models.RoleAdmin:
	default:
		return nil, nil, forbidden("unknown role")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown booking status")
	}
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list bookings")
	}
	return bookings, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// CheckConflict reports whether the interval overlaps an active booking of the tutor.
func (s *BookingService) CheckConflict(ctx context.Context, req ConflictCheckRequest) (bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return false, appErrors.Validation(err, "invalid conflict query")
	}
	if err := validateInterval(req.SessionDate, req.StartTime, req.EndTime); err != nil {
		return false, err
	}
	taken, err := s.repo.HasConflict(ctx, models.BookingConflictQuery{
		TutorID:          req.TutorID,
		SessionDate:      req.SessionDate,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		ExcludeBookingID: req.ExcludeBookingID,
	})
	if err != nil {
		return false, appErrors.Internal(err, "failed to check conflict")
	}
	return taken, nil
}

// Confirm accepts a pending booking.
func (s *BookingService) Confirm(ctx context.Context, actor models.Identity, id string) (*models.BookingView, error) {
	return s.Transition(ctx, actor, id, models.BookingConfirmed)
}

// Cancel cancels a pending or confirmed booking.
func (s *BookingService) Cancel(ctx context.Context, actor models.Identity, id string) (*models.BookingView, error) {
	return s.Transition(ctx, actor, id, models.BookingCancelled)
}

// Complete marks a confirmed booking as completed.
func (s *BookingService) Complete(ctx context.Context, actor models.Identity, id string) (*models.BookingView, error) {
	return s.Transition(ctx, actor, id, models.BookingCompleted)
}

// Transition moves a booking to next after checking the state machine and actor rights.
// The write is a compare-and-swap on the current status so concurrent moves cannot both win.
func (s *BookingService) Transition(ctx context.Context, actor models.Identity, id string, next models.BookingStatus) (*models.BookingView, error) {
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown booking status")
	}
	view, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if err := s.authorizeTransition(actor, view, next); err != nil {
		return nil, err
	}
	if !view.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move booking from %s to %s", view.Status, next))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, models.PredecessorsOf(next), next, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, "booking status changed, reload and retry")
		}
		return nil, appErrors.Internal(err, "failed to update booking")
	}
	s.metrics.RecordTransition(next, string(actor.Role))
	s.logger.Info("booking status changed",
		zap.String("booking_id", id),
		zap.String("from", string(view.Status)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.UserID))

	result := *view
	result.Booking = *updated
	s.afterTransition(ctx, actor, result)
	return &result, nil
}

// Reschedule moves an active booking, re-running the conflict guard with the booking excluded.
// The session length is fixed because any escrowed payment was priced on it. Students are
// bound by the cancellation deadline, and a confirmed booking they move needs the tutor's
// confirmation again.
func (s *BookingService) Reschedule(ctx context.Context, actor models.Identity, id string, req RescheduleRequest) (*models.BookingView, error) {
	if err := validateInterval(req.SessionDate, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	view, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if !actor.IsAdmin() && actor.UserID != view.StudentID && actor.UserID != view.TutorUserID {
		return nil, forbidden("booking belongs to other users")
	}
	if view.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot reschedule a %s booking", view.Status))
	}
	byStudent := !actor.IsAdmin() && actor.UserID == view.StudentID
	if byStudent && view.CancellationDeadline != nil && s.now().After(*view.CancellationDeadline) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "rescheduling deadline has passed")
	}
	if req.EndTime-req.StartTime != view.EndTime-view.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rescheduling must keep the session length")
	}
	if req.StartTime.On(req.SessionDate.Time, s.policy.Location).Before(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must start in the future")
	}
	within, err := s.availability.WithinAvailability(ctx, view.TutorID, req.SessionDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !within {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requested time is outside the tutor's availability")
	}

	status := view.Status
	if byStudent {
		status = models.BookingPending
	}
	updated, err := s.repo.UpdateTimeIfFree(ctx, id, req.SessionDate, req.StartTime, req.EndTime, s.deadline(req.SessionDate, req.StartTime), status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			s.metrics.RecordBookingAttempt("slot_taken")
			return nil, appErrors.Wrap(err, appErrors.ErrSlotTaken.Code, appErrors.ErrSlotTaken.Status, appErrors.ErrSlotTaken.Message)
		case errors.Is(err, repository.ErrStatusChanged):
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, "booking is no longer active")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Internal(err, "failed to reschedule booking")
	}
	if updated.Status != view.Status {
		s.metrics.RecordTransition(updated.Status, string(actor.Role))
	}
	s.logger.Info("booking rescheduled",
		zap.String("booking_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actor.UserID))

	result := *view
	result.Booking = *updated
	message := fmt.Sprintf("Your session moved to %s at %s.", updated.SessionDate, updated.StartTime)
	if updated.Status == models.BookingPending && view.Status == models.BookingConfirmed {
		message = fmt.Sprintf("%s moved their session to %s at %s. Please confirm it again.", displayName(view.StudentName, "Your student"), updated.SessionDate, updated.StartTime)
	}
	s.effects.Notify(ctx, models.Notification{
		UserID:    counterparty(actor, result),
		Title:     "Booking Rescheduled",
		Message:   message,
		Type:      models.NotificationBookingRequest,
		RelatedID: &result.ID,
	})
	s.effects.Publish(ctx, realtime.TableBookings, realtime.OpUpdate, result.ID, result.Participants()...)
	return &result, nil
}

// SweepCompleted completes every confirmed booking whose end has passed.
func (s *BookingService) SweepCompleted(ctx context.Context) (int, error) {
	now := s.now().In(s.policy.Location)
	done, err := s.repo.CompleteDue(ctx, now)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to complete due bookings")
	}
	system := models.Identity{Role: models.RoleAdmin}
	for _, view := range done {
		s.metrics.RecordTransition(models.BookingCompleted, "system")
		s.afterTransition(ctx, system, view)
	}
	if len(done) > 0 {
		s.logger.Info("completed due bookings", zap.Int("count", len(done)))
	}
	return len(done), nil
}

// RunSweeper calls SweepCompleted every interval until ctx is cancelled.
func (s *BookingService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("booking sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepCompleted(ctx); err != nil {
				s.logger.Error("booking sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *BookingService) authorizeTransition(actor models.Identity, view *models.BookingView, next models.BookingStatus) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTutor:
		if actor.UserID != view.TutorUserID {
			return forbidden("booking belongs to another tutor")
		}
		return nil
	case models.RoleStudent:
		if actor.UserID != view.StudentID {
			return forbidden("booking belongs to another student")
		}
		if next != models.BookingCancelled {
			return forbidden("students can only cancel bookings")
		}
		if view.CancellationDeadline != nil && s.now().After(*view.CancellationDeadline) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "cancellation deadline has passed")
		}
		return nil
	default:
		return forbidden("unknown role")
	}
}

func (s *BookingService) afterTransition(ctx context.Context, actor models.Identity, view models.BookingView) {
	when := fmt.Sprintf("%s at %s", view.SessionDate, view.StartTime)
	switch view.Status {
	case models.BookingConfirmed:
		s.effects.Notify(ctx, models.Notification{
			UserID:    view.StudentID,
			Title:     "Booking Confirmed",
			Message:   fmt.Sprintf("%s confirmed your session on %s.", displayName(view.TutorName, "Your tutor"), when),
			Type:      models.NotificationBookingConfirmed,
			RelatedID: &view.ID,
		})
	case models.BookingCancelled:
		for _, userID := range cancellationRecipients(actor, view) {
			s.effects.Notify(ctx, models.Notification{
				UserID:    userID,
				Title:     "Booking Cancelled",
				Message:   fmt.Sprintf("The session on %s has been cancelled.", when),
				Type:      models.NotificationBookingCancelled,
				RelatedID: &view.ID,
			})
		}
		s.effects.SettlePayment(ctx, view.ID, models.PaymentRefunded)
	case models.BookingCompleted:
		s.effects.Notify(ctx, models.Notification{
			UserID:    view.StudentID,
			Title:     "Session Completed",
			Message:   fmt.Sprintf("Your session on %s is complete. You can now leave a review.", when),
			Type:      models.NotificationBookingCompleted,
			RelatedID: &view.ID,
		})
		s.effects.SettlePayment(ctx, view.ID, models.PaymentReleased)
	}
	s.effects.Publish(ctx, realtime.TableBookings, realtime.OpUpdate, view.ID, view.Participants()...)
}

func (s *BookingService) ensureVerified(ctx context.Context, actor models.Identity) error {
	if !s.policy.RequireVerification || s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "complete your profile before booking")
		}
		return appErrors.Internal(err, "failed to load profile")
	}
	if !profile.EmailVerified {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "verify your email address before booking")
	}
	return nil
}

func (s *BookingService) deadline(date models.Date, start models.ClockTime) *time.Time {
	if s.policy.CancellationWindow <= 0 {
		return nil
	}
	d := start.On(date.Time, s.policy.Location).Add(-s.policy.CancellationWindow).UTC()
	return &d
}

func validateInterval(date models.Date, start, end models.ClockTime) error {
	if date.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "session_date is required")
	}
	if !start.Valid() || !end.Valid() || start >= end {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

func cancellationRecipients(actor models.Identity, view models.BookingView) []string {
	switch actor.UserID {
	case view.StudentID:
		return []string{view.TutorUserID}
	case view.TutorUserID:
		return []string{view.StudentID}
	default:
		return view.Participants()
	}
}

func counterparty(actor models.Identity, view models.BookingView) string {
	if actor.UserID == view.StudentID {
		return view.TutorUserID
	}
	return view.StudentID
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
