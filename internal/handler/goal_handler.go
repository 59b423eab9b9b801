package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// GoalHandler exposes learning goals.
type GoalHandler struct {
	goals *service.GoalService
}

// NewGoalHandler constructs GoalHandler.
func NewGoalHandler(goals *service.GoalService) *GoalHandler {
	return &GoalHandler{goals: goals}
}

type setAchievedRequest struct {
	Achieved bool `json:"achieved"`
}

// List godoc
// @Summary List a learner's goals
// @Tags Goals
// @Produce json
// @Param learner_id query string false "Learner (defaults to the caller)"
// @Param subject query string false "Subject"
// @Success 200 {object} response.Envelope
// @Router /goals [get]
func (h *GoalHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	learner := strings.TrimSpace(c.Query("learner_id"))
	if learner == "" && actor.Role == models.RoleStudent {
		learner = actor.UserID
	}
	goals, err := h.goals.List(c.Request.Context(), actor, learner, strings.TrimSpace(c.Query("subject")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, goals)
}

// Create godoc
// @Summary Set a learning goal
// @Tags Goals
// @Accept json
// @Produce json
// @Param payload body service.CreateGoalRequest true "Goal"
// @Success 201 {object} response.Envelope
// @Router /goals [post]
func (h *GoalHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateGoalRequest
	if !bindJSON(c, &req) {
		return
	}
	goal, err := h.goals.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, goal)
}

// SetAchieved godoc
// @Summary Toggle a goal's achieved flag
// @Tags Goals
// @Accept json
// @Produce json
// @Param id path string true "Goal ID"
// @Success 200 {object} response.Envelope
// @Router /goals/{id}/achieved [put]
func (h *GoalHandler) SetAchieved(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req setAchievedRequest
	if !bindJSON(c, &req) {
		return
	}
	goal, err := h.goals.SetAchieved(c.Request.Context(), actor, c.Param("id"), req.Achieved)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, goal)
}

// Delete godoc
// @Summary Delete a goal
// @Tags Goals
// @Param id path string true "Goal ID"
// @Success 204
// @Router /goals/{id} [delete]
func (h *GoalHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.goals.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
