package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// AvailabilityHandler exposes tutors' weekly windows and the generated day slots.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// ListWindows godoc
// @Summary List a tutor's weekly availability
// @Tags Availability
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability [get]
func (h *AvailabilityHandler) ListWindows(c *gin.Context) {
	windows, err := h.availability.ListWindows(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, windows)
}

// Slots godoc
// @Summary Hourly slots of a tutor for one date
// @Tags Availability
// @Produce json
// @Param id path string true "Tutor ID"
// @Param date query string true "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	slots, err := h.availability.Slots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}

// Create godoc
// @Summary Add an availability window to the caller's week
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.AvailabilityRequest true "Window"
// @Success 201 {object} response.Envelope
// @Router /availability [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AvailabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	window, err := h.availability.CreateWindow(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// Update godoc
// @Summary Update an availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Window ID"
// @Param payload body service.AvailabilityRequest true "Window"
// @Success 200 {object} response.Envelope
// @Router /availability/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AvailabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	window, err := h.availability.UpdateWindow(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// Delete godoc
// @Summary Remove an availability window
// @Tags Availability
// @Param id path string true "Window ID"
// @Success 204
// @Router /availability/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.availability.DeleteWindow(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
