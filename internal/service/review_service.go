package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
	ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error)
}

type directoryInvalidator interface {
	Invalidate(ctx context.Context)
}

// CreateReviewRequest rates the tutor of a completed booking.
type CreateReviewRequest struct {
	BookingID string  `json:"booking_id" validate:"required"`
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Comment   *string `json:"comment" validate:"omitempty,max=2000"`
}

// ReviewService manages student reviews and keeps tutor ratings current.
type ReviewService struct {
	repo      reviewRepository
	bookings  bookingReader
	directory directoryInvalidator
	effects   *SideEffects
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(repo reviewRepository, bookings bookingReader, directory directoryInvalidator, effects *SideEffects, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, bookings: bookings, directory: directory, effects: effects, validator: validate, logger: logger}
}

// Create records one review per completed booking by its student.
func (s *ReviewService) Create(ctx context.Context, actor models.Identity, req CreateReviewRequest) (*models.Review, error) {
	if actor.Role != models.RoleStudent {
		return nil, forbidden("only students leave reviews")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid review payload")
	}
	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if booking.StudentID != actor.UserID {
		return nil, forbidden("booking belongs to another student")
	}
	if booking.Status != models.BookingCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only completed sessions can be reviewed")
	}

	review := &models.Review{
		TutorID:     booking.TutorID,
		StudentID:   actor.UserID,
		BookingID:   &booking.ID,
		Rating:      req.Rating,
		Comment:     trimmedOrNil(req.Comment),
		StudentName: actor.FullName,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "session already reviewed")
		}
		return nil, appErrors.Internal(err, "failed to create review")
	}
	s.changed(ctx, review.ID, realtime.OpInsert, booking.TutorUserID)
	return review, nil
}

// ListByTutor returns a tutor's reviews.
func (s *ReviewService) ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error) {
	reviews, err := s.repo.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list reviews")
	}
	return reviews, nil
}

// Delete removes a review as moderation.
func (s *ReviewService) Delete(ctx context.Context, actor models.Identity, id string) error {
	if !actor.IsAdmin() {
		return forbidden("only admins remove reviews")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "review not found", "failed to delete review")
	}
	s.logger.Info("review removed", zap.String("review_id", id), zap.String("admin_id", actor.UserID))
	s.changed(ctx, id, realtime.OpDelete)
	return nil
}

func (s *ReviewService) changed(ctx context.Context, id string, op realtime.Op, userIDs ...string) {
	if s.directory != nil {
		s.directory.Invalidate(ctx)
	}
	s.effects.Publish(ctx, realtime.TableReviews, op, id, userIDs...)
}
