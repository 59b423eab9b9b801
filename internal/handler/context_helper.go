package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// actorFromContext returns the authenticated caller or writes 401 and returns false.
func actorFromContext(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return *identity, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid payload"))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size
}

func toPagination(p *models.Pagination) *response.Pagination {
	if p == nil {
		return nil
	}
	return &response.Pagination{Page: p.Page, PageSize: p.PageSize, TotalCount: p.TotalCount}
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && v
}

func queryDate(c *gin.Context, key string) (models.Date, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" is required"))
		return models.Date{}, false
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		response.Error(c, appErrors.Validation(err, key+" must be YYYY-MM-DD"))
		return models.Date{}, false
	}
	return date, true
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
