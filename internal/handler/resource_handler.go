package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// ResourceHandler exposes shared learning materials.
type ResourceHandler struct {
	resources *service.ResourceService
}

// NewResourceHandler constructs ResourceHandler.
func NewResourceHandler(resources *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// Upload godoc
// @Summary Share a learning resource
// @Tags Resources
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Resource file"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Param subject formData string false "Subject"
// @Param is_public formData bool false "Visible to everyone"
// @Success 201 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	upload, closer, ok := formUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	public, _ := strconv.ParseBool(c.PostForm("is_public"))
	res, err := h.resources.Upload(c.Request.Context(), actor, service.ResourceUpload{
		Upload:      upload,
		Title:       c.PostForm("title"),
		Description: optionalForm(c, "description"),
		Subject:     optionalForm(c, "subject"),
		IsPublic:    public,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Param tutor_id query string false "Tutor"
// @Param subject query string false "Subject"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.resources.List(c.Request.Context(), actor, c.Query("tutor_id"), c.Query("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Link godoc
// @Summary Signed download link for a resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/link [get]
func (h *ResourceHandler) Link(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.resources.Link(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Delete godoc
// @Summary Delete a resource
// @Tags Resources
// @Param id path string true "Resource ID"
// @Success 204
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.resources.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
