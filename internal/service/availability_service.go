package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type availabilityRepository interface {
	ListByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilityWindow, error)
	Create(ctx context.Context, window *models.AvailabilityWindow) error
	Update(ctx context.Context, window *models.AvailabilityWindow) error
	Delete(ctx context.Context, id string) error
	DaySnapshot(ctx context.Context, tutorID string, date models.Date) ([]models.AvailabilityWindow, []models.Booking, error)
}

type tutorLookup interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Tutor, error)
}

// AvailabilityRequest is the payload for creating or replacing a window.
type AvailabilityRequest struct {
	DayOfWeek   int              `json:"day_of_week" validate:"min=0,max=6"`
	StartTime   models.ClockTime `json:"start_time"`
	EndTime     models.ClockTime `json:"end_time"`
	IsAvailable *bool            `json:"is_available"`
}

// AvailabilityService manages weekly windows and derives bookable slots.
type AvailabilityService struct {
	repo      availabilityRepository
	tutors    tutorLookup
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewAvailabilityService constructs AvailabilityService. Dates before today in loc are reported unavailable.
func NewAvailabilityService(repo availabilityRepository, tutors tutorLookup, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{repo: repo, tutors: tutors, validator: validate, logger: logger, location: loc, now: time.Now}
}

// ListWindows returns every window of a tutor.
func (s *AvailabilityService) ListWindows(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error) {
	windows, err := s.repo.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list availability")
	}
	return windows, nil
}

// CreateWindow adds a window to the caller's own tutor profile.
func (s *AvailabilityService) CreateWindow(ctx context.Context, actor models.Identity, req AvailabilityRequest) (*models.AvailabilityWindow, error) {
	if err := s.validateWindow(req); err != nil {
		return nil, err
	}
	tutor, err := s.ownTutor(ctx, actor)
	if err != nil {
		return nil, err
	}
	window := &models.AvailabilityWindow{
		TutorID:     tutor.ID,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
	}
	if err := s.repo.Create(ctx, window); err != nil {
		return nil, appErrors.Internal(err, "failed to create availability")
	}
	s.logger.Info("availability window created", zap.String("tutor_id", tutor.ID), zap.Int("day_of_week", window.DayOfWeek))
	return window, nil
}

// UpdateWindow replaces a window owned by the caller. Admins may edit any window.
func (s *AvailabilityService) UpdateWindow(ctx context.Context, actor models.Identity, id string, req AvailabilityRequest) (*models.AvailabilityWindow, error) {
	if err := s.validateWindow(req); err != nil {
		return nil, err
	}
	window, err := s.authorizedWindow(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	window.DayOfWeek = req.DayOfWeek
	window.StartTime = req.StartTime
	window.EndTime = req.EndTime
	if req.IsAvailable != nil {
		window.IsAvailable = *req.IsAvailable
	}
	if err := s.repo.Update(ctx, window); err != nil {
		return nil, appErrors.Internal(err, "failed to update availability")
	}
	return window, nil
}

// DeleteWindow removes a window. Existing bookings are untouched.
func (s *AvailabilityService) DeleteWindow(ctx context.Context, actor models.Identity, id string) error {
	if _, err := s.authorizedWindow(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete availability")
	}
	return nil
}

// Slots returns the tutor's slots for date from a single consistent snapshot.
func (s *AvailabilityService) Slots(ctx context.Context, tutorID string, date models.Date) (*models.DaySlots, error) {
	if tutorID == "" || date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tutor_id and date are required")
	}
	windows, bookings, err := s.repo.DaySnapshot(ctx, tutorID, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load availability")
	}
	slots := GenerateSlots(date, windows, bookings)
	now := s.now().In(s.location)
	for i := range slots {
		if slots[i].StartTime.On(date.Time, s.location).Before(now) {
			slots[i].Available = false
		}
	}
	return &models.DaySlots{TutorID: tutorID, Date: date, Slots: slots}, nil
}

// WithinAvailability reports whether [start, end) on date lies inside one of the tutor's windows.
func (s *AvailabilityService) WithinAvailability(ctx context.Context, tutorID string, date models.Date, start, end models.ClockTime) (bool, error) {
	windows, _, err := s.repo.DaySnapshot(ctx, tutorID, date)
	if err != nil {
		return false, appErrors.Internal(err, "failed to load availability")
	}
	return withinAvailability(date, windows, start, end), nil
}

func (s *AvailabilityService) validateWindow(req AvailabilityRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid availability payload")
	}
	if !req.StartTime.Valid() || !req.EndTime.Valid() || req.StartTime >= req.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

func (s *AvailabilityService) ownTutor(ctx context.Context, actor models.Identity) (*models.Tutor, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors manage availability")
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	return tutor, nil
}

func (s *AvailabilityService) authorizedWindow(ctx context.Context, actor models.Identity, id string) (*models.AvailabilityWindow, error) {
	window, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "availability window not found", "failed to load availability")
	}
	if actor.IsAdmin() {
		return window, nil
	}
	tutor, err := s.ownTutor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if tutor.ID != window.TutorID {
		return nil, forbidden("availability window belongs to another tutor")
	}
	return window, nil
}
