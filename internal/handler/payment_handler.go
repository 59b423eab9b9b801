package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// PaymentHandler exposes the mocked escrow flow.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type payRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Pay godoc
// @Summary Pay for a booking into escrow
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 201 {object} response.Envelope
// @Router /bookings/{id}/payment [post]
func (h *PaymentHandler) Pay(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req payRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.Pay(c.Request.Context(), actor, c.Param("id"), req.PaymentMethod)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ForBooking godoc
// @Summary Payment of a booking
// @Tags Payments
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/payment [get]
func (h *PaymentHandler) ForBooking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := h.payments.ForBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}

// History godoc
// @Summary The caller's payment history
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.payments.History(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Earnings godoc
// @Summary The tutor's earnings by escrow status
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /earnings [get]
func (h *PaymentHandler) Earnings(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.payments.Earnings(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
