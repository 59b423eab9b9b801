package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// ProfileHandler exposes the caller's profile and parent links.
type ProfileHandler struct {
	profiles *service.ProfileService
	gate     *service.RoleGate
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, gate *service.RoleGate) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, gate: gate}
}

// Me godoc
// @Summary Current profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	profile, err := h.profiles.Me(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Update godoc
// @Summary Update the current profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body service.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Router /me [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Children godoc
// @Summary Learners linked to the caller
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/children [get]
func (h *ProfileHandler) Children(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	links, err := h.profiles.Children(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, links)
}

// LinkChild godoc
// @Summary Link a learner account by email
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body service.LinkChildRequest true "Child"
// @Success 201 {object} response.Envelope
// @Router /me/children [post]
func (h *ProfileHandler) LinkChild(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.LinkChildRequest
	if !bindJSON(c, &req) {
		return
	}
	link, err := h.profiles.LinkChild(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// UnlinkChild godoc
// @Summary Remove a learner link
// @Tags Profile
// @Param child_id path string true "Child user ID"
// @Success 204
// @Router /me/children/{child_id} [delete]
func (h *ProfileHandler) UnlinkChild(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.profiles.UnlinkChild(c.Request.Context(), actor, c.Param("child_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Navigate godoc
// @Summary Resolve a client route for the caller's role
// @Tags Profile
// @Produce json
// @Param path query string true "Client route"
// @Success 200 {object} response.Envelope
// @Router /navigation/resolve [get]
func (h *ProfileHandler) Navigate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	response.OK(c, h.gate.Resolve(actor.Role, c.Query("path")))
}
