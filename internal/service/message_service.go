package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

const (
	defaultThreadLimit = 100
	messagePreviewLen  = 80
)

type messageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	Thread(ctx context.Context, userID, otherID string, limit int) ([]models.Message, error)
	MarkThreadRead(ctx context.Context, userID, otherID string) (int64, error)
	Conversations(ctx context.Context, userID string) ([]models.Conversation, error)
}

// SendMessageRequest is a direct message payload.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Content     string `json:"content" validate:"required,max=4000"`
}

// MessageService handles direct messages between users.
type MessageService struct {
	repo      messageRepository
	profiles  profileLookup
	effects   *SideEffects
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs MessageService.
func NewMessageService(repo messageRepository, profiles profileLookup, effects *SideEffects, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, profiles: profiles, effects: effects, validator: validate, logger: logger}
}

// Send stores a message and notifies the recipient.
func (s *MessageService) Send(ctx context.Context, actor models.Identity, req SendMessageRequest) (*models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid message payload")
	}
	if req.RecipientID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}
	if _, err := s.profiles.FindByUserID(ctx, req.RecipientID); err != nil {
		return nil, lookupError(err, "recipient not found", "failed to load recipient")
	}

	msg := &models.Message{
		SenderID:    actor.UserID,
		RecipientID: req.RecipientID,
		SenderName:  actor.FullName,
		Content:     req.Content,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to send message")
	}

	sender := actor.FullName
	if sender == "" {
		sender = "Someone"
	}
	s.effects.Notify(ctx, models.Notification{
		UserID:    req.RecipientID,
		Title:     "New Message",
		Message:   sender + ": " + preview(req.Content),
		Type:      models.NotificationMessage,
		RelatedID: &msg.ID,
	})
	s.effects.Publish(ctx, realtime.TableMessages, realtime.OpInsert, msg.ID, actor.UserID, req.RecipientID)
	return msg, nil
}

// Thread returns the exchange with otherID and marks the inbound half read.
func (s *MessageService) Thread(ctx context.Context, actor models.Identity, otherID string, limit int) ([]models.Message, error) {
	if strings.TrimSpace(otherID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "counterparty is required")
	}
	if limit <= 0 || limit > 500 {
		limit = defaultThreadLimit
	}
	msgs, err := s.repo.Thread(ctx, actor.UserID, otherID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load messages")
	}
	marked, err := s.repo.MarkThreadRead(ctx, actor.UserID, otherID)
	if err != nil {
		s.logger.Warn("mark thread read failed", zap.String("user_id", actor.UserID), zap.Error(err))
	} else if marked > 0 {
		s.effects.Publish(ctx, realtime.TableMessages, realtime.OpUpdate, "", actor.UserID, otherID)
	}
	return msgs, nil
}

// Conversations lists the caller's counterparties with their latest message.
func (s *MessageService) Conversations(ctx context.Context, actor models.Identity) ([]models.Conversation, error) {
	items, err := s.repo.Conversations(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list conversations")
	}
	return items, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= messagePreviewLen {
		return content
	}
	return string(runes[:messagePreviewLen]) + "..."
}
