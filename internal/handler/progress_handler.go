package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/export"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// ProgressHandler exposes the progress ledger, charts and report export.
type ProgressHandler struct {
	progress *service.ProgressService
	exports  *service.ExportService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress *service.ProgressService, exports *service.ExportService) *ProgressHandler {
	return &ProgressHandler{progress: progress, exports: exports}
}

// Add godoc
// @Summary Record progress for a completed session
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body service.AddProgressRequest true "Progress entry"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Entry already exists for the booking"
// @Router /progress [post]
func (h *ProgressHandler) Add(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AddProgressRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.progress.Add(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// List godoc
// @Summary List a learner's progress entries
// @Tags Progress
// @Produce json
// @Param learner_id query string false "Learner (defaults to the caller)"
// @Param subject query string false "Subject"
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *ProgressHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entries, err := h.progress.List(c.Request.Context(), actor, progressFilter(c, actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Chart godoc
// @Summary Skill trend per subject
// @Tags Progress
// @Produce json
// @Param learner_id query string false "Learner (defaults to the caller)"
// @Param subject query string false "Subject"
// @Success 200 {object} response.Envelope
// @Router /progress/chart [get]
func (h *ProgressHandler) Chart(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	series, err := h.progress.Chart(c.Request.Context(), actor, progressFilter(c, actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, series)
}

// Sessions godoc
// @Summary The tutor's completed sessions with a has_progress flag
// @Tags Progress
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /progress/sessions [get]
func (h *ProgressHandler) Sessions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	sessions, err := h.progress.TutorSessions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessions)
}

// Export godoc
// @Summary Export a progress report
// @Tags Progress
// @Produce json
// @Param learner_id query string false "Learner (defaults to the caller)"
// @Param subject query string false "Subject"
// @Param format query string false "csv|pdf"
// @Success 201 {object} response.Envelope
// @Router /progress/export [post]
func (h *ProgressHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	result, err := h.exports.ProgressReport(c.Request.Context(), actor, progressFilter(c, actor), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func progressFilter(c *gin.Context, actor models.Identity) models.ProgressFilter {
	learner := strings.TrimSpace(c.Query("learner_id"))
	if learner == "" && actor.Role == models.RoleStudent {
		learner = actor.UserID
	}
	return models.ProgressFilter{LearnerID: learner, Subject: strings.TrimSpace(c.Query("subject"))}
}
