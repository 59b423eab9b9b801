package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// MessageHandler exposes direct messages and the notification inbox.
type MessageHandler struct {
	messages      *service.MessageService
	notifications *service.NotificationService
}

// NewMessageHandler constructs MessageHandler.
func NewMessageHandler(messages *service.MessageService, notifications *service.NotificationService) *MessageHandler {
	return &MessageHandler{messages: messages, notifications: notifications}
}

// Send godoc
// @Summary Send a direct message
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body service.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// Conversations godoc
// @Summary List conversations
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /messages [get]
func (h *MessageHandler) Conversations(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.messages.Conversations(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Thread godoc
// @Summary Messages exchanged with one user
// @Tags Messages
// @Produce json
// @Param user_id path string true "Counterparty"
// @Param limit query int false "Max messages"
// @Success 200 {object} response.Envelope
// @Router /messages/{user_id} [get]
func (h *MessageHandler) Thread(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.messages.Thread(c.Request.Context(), actor, c.Param("user_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Notifications godoc
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *MessageHandler) Notifications(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.notifications.List(c.Request.Context(), actor, queryBool(c, "unread"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}
