package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

// RealtimeHandler streams change events over server-sent events.
type RealtimeHandler struct {
	hub       *realtime.Hub
	metrics   *service.MetricsService
	heartbeat time.Duration
}

// NewRealtimeHandler constructs RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub, metrics *service.MetricsService, heartbeat time.Duration) *RealtimeHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &RealtimeHandler{hub: hub, metrics: metrics, heartbeat: heartbeat}
}

// Stream godoc
// @Summary Subscribe to row changes visible to the caller
// @Tags Realtime
// @Produce text/event-stream
// @Param tables query string false "Comma separated table names"
// @Success 200 {string} string "event stream"
// @Router /realtime/stream [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	sub := h.hub.Subscribe(actor.UserID, actor.IsAdmin(), splitList(c.Query("tables"))...)
	defer sub.Close()
	if h.metrics != nil {
		h.metrics.StreamOpened()
		defer h.metrics.StreamClosed()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"subscription_id": sub.ID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, open := <-sub.C:
			if !open {
				return false
			}
			c.SSEvent("change", event)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		}
	})
}
