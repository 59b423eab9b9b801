package handler

import (
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

const uploadField = "file"

// formUpload opens the multipart file field. The caller closes the returned reader.
func formUpload(c *gin.Context) (service.Upload, io.Closer, bool) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		response.Error(c, appErrors.Validation(err, "multipart field \"file\" is required"))
		return service.Upload{}, nil, false
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Validation(err, "cannot read uploaded file"))
		return service.Upload{}, nil, false
	}
	return service.Upload{
		FileName:    header.Filename,
		ContentType: contentTypeOf(header),
		Size:        header.Size,
		Body:        file,
	}, file, true
}

func contentTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func optionalForm(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}
