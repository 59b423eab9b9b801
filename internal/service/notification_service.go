package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

type notificationRepository interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationService exposes a user's inbox.
type NotificationService struct {
	repo    notificationRepository
	effects *SideEffects
	logger  *zap.Logger
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo notificationRepository, effects *SideEffects, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, effects: effects, logger: logger}
}

// List returns the newest notifications first.
func (s *NotificationService) List(ctx context.Context, actor models.Identity, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := s.repo.ListByUser(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list notifications")
	}
	return items, nil
}

// MarkRead marks one of the caller's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Identity, id string) error {
	if err := s.repo.MarkRead(ctx, actor.UserID, id); err != nil {
		return lookupError(err, "notification not found", "failed to update notification")
	}
	s.effects.Publish(ctx, realtime.TableNotifications, realtime.OpUpdate, id, actor.UserID)
	return nil
}

// MarkAllRead clears the caller's unread badge.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Identity) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to update notifications")
	}
	if n > 0 {
		s.effects.Publish(ctx, realtime.TableNotifications, realtime.OpUpdate, "", actor.UserID)
	}
	return n, nil
}
