package handler

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// DownloadHandler redeems signed file links.
type DownloadHandler struct {
	files  *service.DownloadService
	logger *zap.Logger
}

// NewDownloadHandler constructs DownloadHandler.
func NewDownloadHandler(files *service.DownloadService, logger *zap.Logger) *DownloadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadHandler{files: files, logger: logger}
}

// Download godoc
// @Summary Stream a file behind a signed link
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /downloads/{token} [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	rc, key, err := h.files.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	name := path.Base(key)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("download interrupted", zap.String("key", key), zap.Error(err))
	}
}
