package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

const defaultSubject = "General"

type progressRepository interface {
	Create(ctx context.Context, entry *models.ProgressEntry) error
	List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressEntry, error)
	TutorSessions(ctx context.Context, tutorID string) ([]models.TutorSession, error)
}

type bookingReader interface {
	FindByID(ctx context.Context, id string) (*models.BookingView, error)
}

// AddProgressRequest records a tutor's assessment of a completed session.
type AddProgressRequest struct {
	BookingID  string  `json:"booking_id" validate:"required"`
	SkillLevel string  `json:"skill_level" validate:"required"`
	Note       string  `json:"note" validate:"required,max=4000"`
	Homework   *string `json:"homework" validate:"omitempty,max=4000"`
}

// ProgressService maintains the one-entry-per-completed-booking progress ledger.
type ProgressService struct {
	repo      progressRepository
	bookings  bookingReader
	tutors    tutorLookup
	access    learnerAccess
	effects   *SideEffects
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressService constructs ProgressService.
func NewProgressService(repo progressRepository, bookings bookingReader, tutors tutorLookup, parents parentChecker, effects *SideEffects, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		repo:      repo,
		bookings:  bookings,
		tutors:    tutors,
		access:    learnerAccess{parents: parents},
		effects:   effects,
		validator: validate,
		logger:    logger,
	}
}

// Add records progress for a completed booking taught by the caller. A second entry for the
// same booking is rejected with CONFLICT.
func (s *ProgressService) Add(ctx context.Context, actor models.Identity, req AddProgressRequest) (*models.ProgressEntry, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors record progress")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid progress payload")
	}
	level, err := models.ParseSkillLevel(req.SkillLevel)
	if err != nil {
		return nil, appErrors.Validation(err, "invalid skill level")
	}

	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, lookupError(err, "booking not found", "failed to load booking")
	}
	if booking.TutorUserID != actor.UserID {
		return nil, forbidden("booking belongs to another tutor")
	}
	if booking.Status != models.BookingCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "progress can only be recorded for completed sessions")
	}

	subject := defaultSubject
	if booking.Subject != nil && strings.TrimSpace(*booking.Subject) != "" {
		subject = strings.TrimSpace(*booking.Subject)
	}
	entry := &models.ProgressEntry{
		BookingID:   booking.ID,
		LearnerID:   booking.StudentID,
		TutorID:     booking.TutorID,
		Subject:     subject,
		SessionDate: booking.SessionDate,
		SkillLevel:  level,
		Note:        strings.TrimSpace(req.Note),
		Homework:    trimmedOrNil(req.Homework),
		TutorName:   booking.TutorName,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateProgress) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "progress already recorded for this session")
		}
		return nil, appErrors.Internal(err, "failed to record progress")
	}
	s.logger.Info("progress recorded", zap.String("booking_id", booking.ID), zap.String("skill_level", string(level)))

	s.effects.Notify(ctx, models.Notification{
		UserID:    entry.LearnerID,
		Title:     "Progress Update",
		Message:   fmt.Sprintf("Your tutor has updated your progress for %s.", entry.Subject),
		Type:      models.NotificationProgressUpdate,
		RelatedID: &booking.ID,
	})
	s.effects.Publish(ctx, realtime.TableProgress, realtime.OpInsert, entry.ID, entry.LearnerID, booking.TutorUserID)
	return entry, nil
}

// List returns a learner's entries ordered by session date. Tutors only see the entries they wrote.
func (s *ProgressService) List(ctx context.Context, actor models.Identity, filter models.ProgressFilter) ([]models.ProgressEntry, error) {
	if err := s.access.check(ctx, actor, filter.LearnerID); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list progress")
	}
	if actor.Role != models.RoleTutor {
		return entries, nil
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	own := entries[:0]
	for _, e := range entries {
		if e.TutorID == tutor.ID {
			own = append(own, e)
		}
	}
	return own, nil
}

// Chart groups a learner's entries into per-subject trend series.
func (s *ProgressService) Chart(ctx context.Context, actor models.Identity, filter models.ProgressFilter) ([]models.SubjectSeries, error) {
	entries, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return BuildChart(entries), nil
}

// TutorSessions lists the caller's completed sessions flagged with whether progress exists.
func (s *ProgressService) TutorSessions(ctx context.Context, actor models.Identity) ([]models.TutorSession, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors have sessions")
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	sessions, err := s.repo.TutorSessions(ctx, tutor.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}
	return sessions, nil
}

// BuildChart maps skill levels onto 1..4 and groups them by subject in session order.
func BuildChart(entries []models.ProgressEntry) []models.SubjectSeries {
	bySubject := make(map[string]*models.SubjectSeries)
	var order []string
	sorted := append([]models.ProgressEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SessionDate.Before(sorted[j].SessionDate) })

	for _, e := range sorted {
		series, ok := bySubject[e.Subject]
		if !ok {
			series = &models.SubjectSeries{Subject: e.Subject}
			bySubject[e.Subject] = series
			order = append(order, e.Subject)
		}
		series.Points = append(series.Points, models.ChartPoint{SessionDate: e.SessionDate, SkillLevel: e.SkillLevel, Ordinal: e.SkillLevel.Ordinal()})
	}

	sort.Strings(order)
	out := make([]models.SubjectSeries, 0, len(order))
	for _, subject := range order {
		series := bySubject[subject]
		total := 0
		for _, p := range series.Points {
			total += p.Ordinal
		}
		series.Latest = series.Points[len(series.Points)-1].Ordinal
		series.Average = float64(total) / float64(len(series.Points))
		out = append(out, *series)
	}
	return out
}
