package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// ReviewHandler exposes student reviews.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler constructs ReviewHandler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create godoc
// @Summary Review a completed session
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body service.CreateReviewRequest true "Review"
// @Success 201 {object} response.Envelope
// @Router /reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.reviews.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// Delete godoc
// @Summary Remove a review
// @Tags Admin
// @Param id path string true "Review ID"
// @Success 204
// @Router /admin/reviews/{id} [delete]
func (h *ReviewHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
