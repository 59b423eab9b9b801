package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type userDirectory interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.UserSummary, int, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
	CountUsers(ctx context.Context) (int, error)
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
}

// OverviewSources are the counters the admin overview aggregates.
type OverviewSources struct {
	Tutors interface {
		Counts(ctx context.Context) (int, int, error)
	}
	Certificates interface {
		CountPending(ctx context.Context) (int, error)
	}
	Bookings interface {
		CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	}
	Reviews interface {
		Count(ctx context.Context) (int, error)
	}
	Payments interface {
		EscrowBalance(ctx context.Context) (float64, error)
	}
}

// AdminService backs the moderation console.
type AdminService struct {
	users   userDirectory
	sources OverviewSources
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAdminService constructs AdminService.
func NewAdminService(users userDirectory, sources OverviewSources, metrics *MetricsService, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{users: users, sources: sources, metrics: metrics, logger: logger}
}

// Overview gathers the dashboard counters concurrently.
func (s *AdminService) Overview(ctx context.Context, actor models.Identity) (*models.Overview, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("admin role required")
	}
	var out models.Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.CountUsers(gctx)
		out.Users = n
		return err
	})
	g.Go(func() error {
		total, pending, err := s.sources.Tutors.Counts(gctx)
		out.Tutors, out.PendingTutors = total, pending
		return err
	})
	g.Go(func() error {
		n, err := s.sources.Certificates.CountPending(gctx)
		out.PendingCertificates = n
		return err
	})
	g.Go(func() error {
		counts, err := s.sources.Bookings.CountByStatus(gctx)
		out.Bookings = counts
		return err
	})
	g.Go(func() error {
		n, err := s.sources.Reviews.Count(gctx)
		out.Reviews = n
		return err
	})
	g.Go(func() error {
		balance, err := s.sources.Payments.EscrowBalance(gctx)
		out.EscrowBalance = balance
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Internal(err, "failed to build overview")
	}
	if out.Bookings == nil {
		out.Bookings = []models.StatusCount{}
	}
	out.System = s.metrics.Snapshot()
	return &out, nil
}

// Users lists accounts with their roles.
func (s *AdminService) Users(ctx context.Context, actor models.Identity, filter models.UserFilter) ([]models.UserSummary, *models.Pagination, error) {
	if !actor.IsAdmin() {
		return nil, nil, forbidden("admin role required")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// SetRole assigns a role. Admins cannot demote themselves.
func (s *AdminService) SetRole(ctx context.Context, actor models.Identity, userID string, role models.Role) error {
	if !actor.IsAdmin() {
		return forbidden("admin role required")
	}
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if userID == actor.UserID && role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrValidation, "cannot remove your own admin role")
	}
	if _, err := s.users.FindByUserID(ctx, userID); err != nil {
		return lookupError(err, "user not found", "failed to load user")
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return appErrors.Internal(err, "failed to set role")
	}
	s.logger.Info("role changed", zap.String("user_id", userID), zap.String("role", string(role)), zap.String("admin_id", actor.UserID))
	return nil
}
