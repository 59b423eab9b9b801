package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// CertificateHandler exposes tutors' qualification uploads.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Upload godoc
// @Summary Upload a certificate for approval
// @Tags Certificates
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Certificate document"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	upload, closer, ok := formUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	cert, err := h.certificates.Upload(c.Request.Context(), actor, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// List godoc
// @Summary List certificates
// @Tags Certificates
// @Produce json
// @Param tutor_id query string false "Tutor (admins only)"
// @Param pending query bool false "Only certificates awaiting approval"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	certs, err := h.certificates.List(c.Request.Context(), actor, c.Query("tutor_id"), queryBool(c, "pending"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, certs)
}

// Link godoc
// @Summary Signed download link for a certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id}/link [get]
func (h *CertificateHandler) Link(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.certificates.Link(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Delete godoc
// @Summary Delete a certificate
// @Tags Certificates
// @Param id path string true "Certificate ID"
// @Success 204
// @Router /certificates/{id} [delete]
func (h *CertificateHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.certificates.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
