package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type goalRepository interface {
	List(ctx context.Context, learnerID, subject string) ([]models.LearningGoal, error)
	FindByID(ctx context.Context, id string) (*models.LearningGoal, error)
	Create(ctx context.Context, goal *models.LearningGoal) error
	SetAchieved(ctx context.Context, id string, achieved bool, on *models.Date) (*models.LearningGoal, error)
	Delete(ctx context.Context, id string) error
}

// CreateGoalRequest sets a goal for a learner.
type CreateGoalRequest struct {
	LearnerID  string       `json:"learner_id" validate:"required"`
	Subject    string       `json:"subject" validate:"required,max=120"`
	GoalText   string       `json:"goal_text" validate:"required,max=1000"`
	TargetDate *models.Date `json:"target_date"`
}

// GoalService manages tutor-set learning goals.
type GoalService struct {
	repo      goalRepository
	tutors    tutorLookup
	access    learnerAccess
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewGoalService constructs GoalService.
func NewGoalService(repo goalRepository, tutors tutorLookup, parents parentChecker, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *GoalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoalService{repo: repo, tutors: tutors, access: learnerAccess{parents: parents}, validator: validate, logger: logger, location: loc, now: time.Now}
}

// List returns a learner's goals, optionally for one subject.
func (s *GoalService) List(ctx context.Context, actor models.Identity, learnerID, subject string) ([]models.LearningGoal, error) {
	if err := s.access.check(ctx, actor, learnerID); err != nil {
		return nil, err
	}
	goals, err := s.repo.List(ctx, learnerID, strings.TrimSpace(subject))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list goals")
	}
	return goals, nil
}

// Create adds a goal authored by the calling tutor.
func (s *GoalService) Create(ctx context.Context, actor models.Identity, req CreateGoalRequest) (*models.LearningGoal, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors set learning goals")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid goal payload")
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	goal := &models.LearningGoal{
		LearnerID:  req.LearnerID,
		TutorID:    tutor.ID,
		Subject:    strings.TrimSpace(req.Subject),
		GoalText:   strings.TrimSpace(req.GoalText),
		TargetDate: req.TargetDate,
	}
	if err := s.repo.Create(ctx, goal); err != nil {
		if errors.Is(err, repository.ErrUnknownLearner) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Internal(err, "failed to create goal")
	}
	return goal, nil
}

// SetAchieved toggles a goal. Marking it achieved stamps today's date; clearing it removes the date.
func (s *GoalService) SetAchieved(ctx context.Context, actor models.Identity, id string, achieved bool) (*models.LearningGoal, error) {
	if _, err := s.ownedGoal(ctx, actor, id); err != nil {
		return nil, err
	}
	var on *models.Date
	if achieved {
		today := models.NewDate(s.now().In(s.location))
		on = &today
	}
	goal, err := s.repo.SetAchieved(ctx, id, achieved, on)
	if err != nil {
		return nil, lookupError(err, "goal not found", "failed to update goal")
	}
	return goal, nil
}

// Delete removes a goal owned by the calling tutor.
func (s *GoalService) Delete(ctx context.Context, actor models.Identity, id string) error {
	if _, err := s.ownedGoal(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete goal")
	}
	return nil
}

func (s *GoalService) ownedGoal(ctx context.Context, actor models.Identity, id string) (*models.LearningGoal, error) {
	goal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "goal not found", "failed to load goal")
	}
	if actor.IsAdmin() {
		return goal, nil
	}
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors manage learning goals")
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	if tutor.ID != goal.TutorID {
		return nil, forbidden("goal belongs to another tutor")
	}
	return goal, nil
}
