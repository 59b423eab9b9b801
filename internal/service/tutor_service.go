package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

const tutorCacheNamespace = "tutors"

type tutorRepository interface {
	Search(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error)
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Tutor, error)
	Upsert(ctx context.Context, tutor *models.Tutor) error
	SetApproved(ctx context.Context, id string, approved bool) error
	Subjects(ctx context.Context) ([]string, error)
	Qualifications(ctx context.Context) ([]string, error)
}

type profileNameWriter interface {
	UpdateContact(ctx context.Context, userID, fullName string, phone, avatarURL *string) error
}

// TutorProfileRequest is the editable part of a tutor's profile.
type TutorProfileRequest struct {
	FullName         string   `json:"full_name" validate:"required,max=120"`
	Bio              *string  `json:"bio" validate:"omitempty,max=4000"`
	Subjects         []string `json:"subjects" validate:"required,min=1,dive,required,max=80"`
	Qualifications   []string `json:"qualifications" validate:"omitempty,dive,max=200"`
	Languages        []string `json:"languages" validate:"omitempty,dive,max=60"`
	TeachingLevel    []string `json:"teaching_level" validate:"omitempty,dive,max=60"`
	TeachingLocation []string `json:"teaching_location" validate:"omitempty,dive,max=60"`
	EducationLevel   *string  `json:"education_level" validate:"omitempty,max=120"`
	Gender           *string  `json:"gender" validate:"omitempty,oneof=male female other"`
	HourlyRate       float64  `json:"hourly_rate" validate:"gte=0,lte=10000"`
	ExperienceYears  int      `json:"experience_years" validate:"gte=0,lte=80"`
	Phone            *string  `json:"phone" validate:"omitempty,max=40"`
}

type tutorPage struct {
	Tutors []models.Tutor `json:"tutors"`
	Total  int            `json:"total"`
}

// TutorService serves the public tutor directory and tutors' own profiles.
type TutorService struct {
	repo      tutorRepository
	profiles  profileNameWriter
	cache     *CacheService
	effects   *SideEffects
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTutorService constructs TutorService.
func NewTutorService(repo tutorRepository, profiles profileNameWriter, cacheSvc *CacheService, effects *SideEffects, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{repo: repo, profiles: profiles, cache: cacheSvc, effects: effects, validator: validate, logger: logger}
}

// Search lists tutors matching filter. Only admins may include unapproved tutors; public
// searches are served from cache when possible. The bool result reports a cache hit.
func (s *TutorService) Search(ctx context.Context, actor models.Identity, filter models.TutorFilter) ([]models.Tutor, *models.Pagination, bool, error) {
	if !actor.IsAdmin() {
		filter.IncludeUnapproved = false
	}
	filter.Search = strings.TrimSpace(filter.Search)

	search := func(ctx context.Context) (tutorPage, error) {
		tutors, total, err := s.repo.Search(ctx, filter)
		if err != nil {
			return tutorPage{}, appErrors.Internal(err, "failed to search tutors")
		}
		return tutorPage{Tutors: tutors, Total: total}, nil
	}

	var (
		page tutorPage
		hit  bool
		err  error
	)
	if filter.IncludeUnapproved {
		page, err = search(ctx)
	} else {
		page, hit, err = remember(ctx, s.cache, cache.Key(tutorCacheNamespace, "search", filterDigest(filter)), search)
	}
	if err != nil {
		return nil, nil, false, err
	}
	return page.Tutors, models.NewPagination(filter.Page, filter.PageSize, page.Total), hit, nil
}

// Get returns one tutor. Unapproved profiles are only visible to their owner and admins.
func (s *TutorService) Get(ctx context.Context, actor models.Identity, id string) (*models.Tutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "tutor not found", "failed to load tutor")
	}
	if !tutor.IsApproved && !actor.IsAdmin() && actor.UserID != tutor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
	}
	return tutor, nil
}

// Mine returns the caller's own tutor profile.
func (s *TutorService) Mine(ctx context.Context, actor models.Identity) (*models.Tutor, error) {
	tutor, err := s.repo.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	return tutor, nil
}

// SaveProfile creates or updates the caller's tutor profile. New profiles start unapproved.
func (s *TutorService) SaveProfile(ctx context.Context, actor models.Identity, req TutorProfileRequest) (*models.Tutor, error) {
	if actor.Role != models.RoleTutor {
		return nil, forbidden("only tutors have a tutor profile")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid tutor profile")
	}

	tutor := &models.Tutor{
		UserID:           actor.UserID,
		Bio:              trimmedOrNil(req.Bio),
		Subjects:         cleanList(req.Subjects),
		Qualifications:   cleanList(req.Qualifications),
		Languages:        cleanList(req.Languages),
		TeachingLevel:    cleanList(req.TeachingLevel),
		TeachingLocation: cleanList(req.TeachingLocation),
		EducationLevel:   trimmedOrNil(req.EducationLevel),
		Gender:           trimmedOrNil(req.Gender),
		HourlyRate:       req.HourlyRate,
		ExperienceYears:  req.ExperienceYears,
	}
	if err := s.repo.Upsert(ctx, tutor); err != nil {
		return nil, appErrors.Internal(err, "failed to save tutor profile")
	}
	if s.profiles != nil {
		if err := s.profiles.UpdateContact(ctx, actor.UserID, strings.TrimSpace(req.FullName), trimmedOrNil(req.Phone), nil); err != nil {
			s.logger.Warn("update profile name failed", zap.String("user_id", actor.UserID), zap.Error(err))
		}
	}
	saved, err := s.repo.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupError(err, "tutor profile not found", "failed to load tutor profile")
	}
	s.changed(ctx, saved.ID, realtime.OpUpdate)
	return saved, nil
}

// SetApproved lets an admin approve or suspend a tutor.
func (s *TutorService) SetApproved(ctx context.Context, actor models.Identity, id string, approved bool) (*models.Tutor, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins approve tutors")
	}
	if err := s.repo.SetApproved(ctx, id, approved); err != nil {
		return nil, lookupError(err, "tutor not found", "failed to update tutor approval")
	}
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "tutor not found", "failed to load tutor")
	}
	s.logger.Info("tutor approval changed", zap.String("tutor_id", id), zap.Bool("approved", approved), zap.String("admin_id", actor.UserID))
	s.changed(ctx, id, realtime.OpUpdate, tutor.UserID)
	return tutor, nil
}

// Subjects returns the distinct subjects of approved tutors.
func (s *TutorService) Subjects(ctx context.Context) ([]string, error) {
	return s.catalogue(ctx, "subjects", s.repo.Subjects)
}

// Qualifications returns the distinct qualifications of approved tutors.
func (s *TutorService) Qualifications(ctx context.Context) ([]string, error) {
	return s.catalogue(ctx, "qualifications", s.repo.Qualifications)
}

// HandleChange drops cached directory data when a tutor or review change is observed on the bus.
func (s *TutorService) HandleChange(ev realtime.ChangeEvent) {
	if ev.Table != realtime.TableTutors && ev.Table != realtime.TableReviews {
		return
	}
	s.cache.Invalidate(context.Background(), tutorCacheNamespace)
}

// Invalidate drops every cached directory entry.
func (s *TutorService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, tutorCacheNamespace)
}

func (s *TutorService) catalogue(ctx context.Context, name string, load func(context.Context) ([]string, error)) ([]string, error) {
	values, _, err := remember(ctx, s.cache, cache.Key(tutorCacheNamespace, name), func(ctx context.Context) ([]string, error) {
		values, err := load(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load "+name)
		}
		if values == nil {
			values = []string{}
		}
		return values, nil
	})
	return values, err
}

func (s *TutorService) changed(ctx context.Context, tutorID string, op realtime.Op, userIDs ...string) {
	s.Invalidate(ctx)
	s.effects.Publish(ctx, realtime.TableTutors, op, tutorID, userIDs...)
}

func filterDigest(filter models.TutorFilter) string {
	raw, _ := json.Marshal(filter)
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}

func cleanList(values []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(v)]; dup {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
		out = append(out, v)
	}
	return out
}
