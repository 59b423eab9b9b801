package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, actor models.Identity, req service.CreateBookingRequest) (*models.BookingView, error)
	Get(ctx context.Context, actor models.Identity, id string) (*models.BookingView, error)
	List(ctx context.Context, actor models.Identity, filter models.BookingFilter) ([]models.BookingView, *models.Pagination, error)
	CheckConflict(ctx context.Context, req service.ConflictCheckRequest) (bool, error)
	Transition(ctx context.Context, actor models.Identity, id string, next models.BookingStatus) (*models.BookingView, error)
	Reschedule(ctx context.Context, actor models.Identity, id string, req service.RescheduleRequest) (*models.BookingView, error)
}

type slotService interface {
	Slots(ctx context.Context, tutorID string, date models.Date) (*models.DaySlots, error)
}

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	bookings bookingService
	slots    slotService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings bookingService, slots slotService) *BookingHandler {
	return &BookingHandler{bookings: bookings, slots: slots}
}

// Create godoc
// @Summary Request a session
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "SLOT_TAKEN carries the refreshed slots"
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.respondConflict(c, err, req.TutorID, req.SessionDate)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary List the caller's bookings
// @Tags Bookings
// @Produce json
// @Param status query string false "pending|confirmed|completed|cancelled"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter models.BookingFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.BookingStatus(strings.ToLower(raw))
		filter.Status = &status
	}
	for key, dest := range map[string]**models.Date{"from": &filter.From, "to": &filter.To} {
		if raw := c.Query(key); raw != "" {
			date, err := models.ParseDate(raw)
			if err != nil {
				response.Error(c, appErrors.Validation(err, key+" must be YYYY-MM-DD"))
				return
			}
			*dest = &date
		}
	}
	filter.TutorID = c.Query("tutor_id")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortOrder = c.Query("order")

	items, pagination, err := h.bookings.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, toPagination(pagination))
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.bookings.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// CheckConflict godoc
// @Summary Check whether an interval collides with an active booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.ConflictCheckRequest true "Interval"
// @Success 200 {object} response.Envelope
// @Router /bookings/conflicts [post]
func (h *BookingHandler) CheckConflict(c *gin.Context) {
	var req service.ConflictCheckRequest
	if !bindJSON(c, &req) {
		return
	}
	conflict, err := h.bookings.CheckConflict(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"conflict": conflict})
}

// Confirm godoc
// @Summary Confirm a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, models.BookingConfirmed)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, models.BookingCancelled)
}

// Complete godoc
// @Summary Mark a confirmed booking completed
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, models.BookingCompleted)
}

// Reschedule godoc
// @Summary Move an active booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body service.RescheduleRequest true "New interval"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/reschedule [post]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.Reschedule(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		tutorID := ""
		if current, getErr := h.bookings.Get(c.Request.Context(), actor, c.Param("id")); getErr == nil {
			tutorID = current.TutorID
		}
		h.respondConflict(c, err, tutorID, req.SessionDate)
		return
	}
	response.OK(c, booking)
}

func (h *BookingHandler) transition(c *gin.Context, next models.BookingStatus) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.bookings.Transition(c.Request.Context(), actor, c.Param("id"), next)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// respondConflict attaches the refreshed slot list to SLOT_TAKEN so the client can
// prompt re-selection. Other errors are rendered as-is.
func (h *BookingHandler) respondConflict(c *gin.Context, err error, tutorID string, date models.Date) {
	if !errors.Is(err, appErrors.ErrSlotTaken) || h.slots == nil || tutorID == "" || date.IsZero() {
		response.Error(c, err)
		return
	}
	slots, slotErr := h.slots.Slots(c.Request.Context(), tutorID, date)
	if slotErr != nil {
		response.Error(c, err)
		return
	}
	response.ErrorWithData(c, err, slots)
}
