package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type resourceRepository interface {
	Create(ctx context.Context, res *models.Resource) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	List(ctx context.Context, tutorID, subject string, publicOnly bool) ([]models.Resource, error)
	Delete(ctx context.Context, id string) error
}

// ResourceUpload describes a learning material upload.
type ResourceUpload struct {
	Upload
	Title       string
	Description *string
	Subject     *string
	IsPublic    bool
}

// ResourceService shares tutors' learning materials.
type ResourceService struct {
	repo   resourceRepository
	tutors tutorLookup
	files  *DownloadService
	policy UploadPolicy
	logger *zap.Logger
}

// NewResourceService constructs ResourceService.
func NewResourceService(repo resourceRepository, tutors tutorLookup, files *DownloadService, policy UploadPolicy, logger *zap.Logger) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{repo: repo, tutors: tutors, files: files, policy: policy, logger: logger}
}

// Upload stores the file under resources/<tutor_id>/ and records its metadata.
func (s *ResourceService) Upload(ctx context.Context, actor models.Identity, upload ResourceUpload) (*models.Resource, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors share resources")
	}
	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = upload.FileName
	}
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if err := s.policy.check(upload.ContentType, upload.Size); err != nil {
		return nil, err
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}

	key := fmt.Sprintf("resources/%s/%s-%s", tutor.ID, uuid.NewString(), safeFileName(upload.FileName))
	if err := s.files.Put(ctx, key, upload.ContentType, upload.Body); err != nil {
		return nil, err
	}
	res := &models.Resource{
		TutorID:     tutor.ID,
		Title:       title,
		Description: trimmedOrNil(upload.Description),
		Subject:     trimmedOrNil(upload.Subject),
		StorageKey:  key,
		ContentType: upload.ContentType,
		IsPublic:    upload.IsPublic,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		if rmErr := s.files.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("orphaned resource object", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, appErrors.Internal(err, "failed to record resource")
	}
	return res, nil
}

// List returns resources. Only public ones are visible to anyone but their tutor and admins.
func (s *ResourceService) List(ctx context.Context, actor models.Identity, tutorID, subject string) ([]models.Resource, error) {
	publicOnly := !actor.IsAdmin()
	if publicOnly && actor.Role == models.RoleTutor && tutorID != "" {
		if tutor, err := s.tutors.FindByUserID(ctx, actor.UserID); err == nil && tutor.ID == tutorID {
			publicOnly = false
		}
	}
	items, err := s.repo.List(ctx, tutorID, strings.TrimSpace(subject), publicOnly)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list resources")
	}
	return items, nil
}

// Link issues a signed download link.
func (s *ResourceService) Link(ctx context.Context, actor models.Identity, id string) (*models.DownloadLink, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "resource not found", "failed to load resource")
	}
	if !res.IsPublic {
		if _, err := s.owned(ctx, actor, res); err != nil {
			return nil, err
		}
	}
	return s.files.Link(actor.UserID, res.StorageKey)
}

// Delete removes a resource and its stored file.
func (s *ResourceService) Delete(ctx context.Context, actor models.Identity, id string) error {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "resource not found", "failed to load resource")
	}
	if _, err := s.owned(ctx, actor, res); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "resource not found", "failed to delete resource")
	}
	if err := s.files.Remove(ctx, res.StorageKey); err != nil {
		s.logger.Warn("delete resource object failed", zap.String("key", res.StorageKey), zap.Error(err))
	}
	return nil
}

func (s *ResourceService) owned(ctx context.Context, actor models.Identity, res *models.Resource) (*models.Resource, error) {
	if actor.IsAdmin() {
		return res, nil
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil || tutor.ID != res.TutorID {
		return nil, forbidden("resource belongs to another tutor")
	}
	return res, nil
}
