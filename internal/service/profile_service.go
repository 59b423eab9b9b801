package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type profileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
	UpdateContact(ctx context.Context, userID, fullName string, phone, avatarURL *string) error
	LinkChild(ctx context.Context, link *models.ParentLink) error
	UnlinkChild(ctx context.Context, parentID, childID string) error
	Children(ctx context.Context, parentID string) ([]models.ParentLink, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
}

// UpdateProfileRequest edits the caller's contact details.
type UpdateProfileRequest struct {
	FullName  string  `json:"full_name" validate:"required,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// LinkChildRequest links a child account by email.
type LinkChildRequest struct {
	ChildEmail string `json:"child_email" validate:"required,email"`
}

// ProfileService manages the caller's profile and parent/child links.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// Me returns the caller's profile.
func (s *ProfileService) Me(ctx context.Context, actor models.Identity) (*models.Profile, error) {
	profile, err := s.repo.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "profile not found", "failed to load profile")
	}
	return profile, nil
}

// Update edits the caller's contact details.
func (s *ProfileService) Update(ctx context.Context, actor models.Identity, req UpdateProfileRequest) (*models.Profile, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid profile payload")
	}
	if err := s.repo.UpdateContact(ctx, actor.UserID, req.FullName, trimmedOrNil(req.Phone), trimmedOrNil(req.AvatarURL)); err != nil {
		return nil, lookupError(err, "profile not found", "failed to update profile")
	}
	return s.Me(ctx, actor)
}

// LinkChild connects the caller, as a parent, to a student account.
func (s *ProfileService) LinkChild(ctx context.Context, actor models.Identity, req LinkChildRequest) (*models.ParentLink, error) {
	if actor.Role != models.RoleStudent {
		return nil, forbidden("only parent accounts link children")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid link payload")
	}
	childID, err := s.repo.FindUserIDByEmail(ctx, strings.TrimSpace(req.ChildEmail))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no account with that email")
		}
		return nil, appErrors.Internal(err, "failed to look up child")
	}
	if childID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot link your own account")
	}
	link := &models.ParentLink{ParentID: actor.UserID, ChildID: childID}
	if err := s.repo.LinkChild(ctx, link); err != nil {
		return nil, appErrors.Internal(err, "failed to link child")
	}
	s.logger.Info("child linked", zap.String("parent_id", actor.UserID), zap.String("child_id", childID))
	return link, nil
}

// UnlinkChild removes a parent/child link.
func (s *ProfileService) UnlinkChild(ctx context.Context, actor models.Identity, childID string) error {
	if err := s.repo.UnlinkChild(ctx, actor.UserID, childID); err != nil {
		return lookupError(err, "link not found", "failed to unlink child")
	}
	return nil
}

// Children lists the caller's linked children.
func (s *ProfileService) Children(ctx context.Context, actor models.Identity) ([]models.ParentLink, error) {
	links, err := s.repo.Children(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list children")
	}
	return links, nil
}
