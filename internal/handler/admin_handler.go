package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// AdminHandler exposes the admin console operations.
type AdminHandler struct {
	admin        *service.AdminService
	tutors       *service.TutorService
	bookings     *service.BookingService
	certificates *service.CertificateService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *service.AdminService, tutors *service.TutorService, bookings *service.BookingService, certificates *service.CertificateService) *AdminHandler {
	return &AdminHandler{admin: admin, tutors: tutors, bookings: bookings, certificates: certificates}
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

type statusRequest struct {
	Status models.BookingStatus `json:"status" binding:"required"`
}

// Overview godoc
// @Summary Platform counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/overview [get]
func (h *AdminHandler) Overview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	overview, err := h.admin.Overview(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}

// Users godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Param role query string false "Role"
// @Param q query string false "Name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) Users(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	filter := models.UserFilter{Search: strings.TrimSpace(c.Query("q")), Page: page, PageSize: size}
	if raw := c.Query("role"); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
		filter.Role = &role
	}
	users, pagination, err := h.admin.Users(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, toPagination(pagination))
}

// SetRole godoc
// @Summary Change a user's role
// @Tags Admin
// @Accept json
// @Param id path string true "User ID"
// @Success 204
// @Router /admin/users/{id}/role [put]
func (h *AdminHandler) SetRole(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := h.admin.SetRole(c.Request.Context(), actor, c.Param("id"), role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ApproveTutor godoc
// @Summary Approve or revoke a tutor
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /admin/tutors/{id}/approval [put]
func (h *AdminHandler) ApproveTutor(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req approvalRequest
	if !bindJSON(c, &req) {
		return
	}
	tutor, err := h.tutors.SetApproved(c.Request.Context(), actor, c.Param("id"), *req.Approved)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tutor)
}

// ApproveCertificate godoc
// @Summary Approve or reject a certificate
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /admin/certificates/{id}/approval [put]
func (h *AdminHandler) ApproveCertificate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req approvalRequest
	if !bindJSON(c, &req) {
		return
	}
	cert, err := h.certificates.SetApproval(c.Request.Context(), actor, c.Param("id"), *req.Approved)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cert)
}

// OverrideBooking godoc
// @Summary Force a booking status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /admin/bookings/{id}/status [put]
func (h *AdminHandler) OverrideBooking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.bookings.Transition(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}
