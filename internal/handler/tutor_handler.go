package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// TutorHandler exposes the tutor directory and tutors' own profiles.
type TutorHandler struct {
	tutors  *service.TutorService
	reviews *service.ReviewService
}

// NewTutorHandler constructs TutorHandler.
func NewTutorHandler(tutors *service.TutorService, reviews *service.ReviewService) *TutorHandler {
	return &TutorHandler{tutors: tutors, reviews: reviews}
}

// Search godoc
// @Summary Search tutors
// @Tags Tutors
// @Produce json
// @Param search query string false "Name, bio or subject"
// @Param subjects query string false "Comma separated subjects"
// @Param education_level query string false "Education level"
// @Param teaching_level query string false "Teaching level"
// @Param teaching_location query string false "Teaching location"
// @Param gender query string false "male|female|other"
// @Param min_rating query number false "Minimum rating"
// @Param max_rate query number false "Maximum hourly rate"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "rating|hourly_rate|experience_years|created_at"
// @Param order query string false "asc|desc"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) Search(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.TutorFilter{
		Search:            strings.TrimSpace(c.Query("search")),
		Subjects:          splitList(c.Query("subjects")),
		EducationLevel:    c.Query("education_level"),
		TeachingLevel:     c.Query("teaching_level"),
		TeachingLocation:  c.Query("teaching_location"),
		Gender:            c.Query("gender"),
		IncludeUnapproved: queryBool(c, "include_unapproved"),
		SortBy:            c.Query("sort"),
		SortOrder:         c.Query("order"),
	}
	if v, err := strconv.ParseFloat(c.Query("min_rating"), 64); err == nil {
		filter.MinRating = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_rate"), 64); err == nil {
		filter.MaxHourlyRate = &v
	}
	filter.Page, filter.PageSize = pageParams(c)

	tutors, pagination, hit, err := h.tutors.Search(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, tutors, toPagination(pagination), middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a tutor profile
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	tutor, err := h.tutors.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tutor)
}

// Reviews godoc
// @Summary List a tutor's reviews
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/reviews [get]
func (h *TutorHandler) Reviews(c *gin.Context) {
	reviews, err := h.reviews.ListByTutor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reviews)
}

// Mine godoc
// @Summary The caller's tutor profile
// @Tags Tutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutors/me [get]
func (h *TutorHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	tutor, err := h.tutors.Mine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tutor)
}

// Save godoc
// @Summary Create or update the caller's tutor profile
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body service.TutorProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Router /tutors/me [put]
func (h *TutorHandler) Save(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.TutorProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	tutor, err := h.tutors.SaveProfile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tutor)
}

// Subjects godoc
// @Summary Distinct subjects of approved tutors
// @Tags Tutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalogue/subjects [get]
func (h *TutorHandler) Subjects(c *gin.Context) {
	values, err := h.tutors.Subjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, values)
}

// Qualifications godoc
// @Summary Distinct qualifications of approved tutors
// @Tags Tutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalogue/qualifications [get]
func (h *TutorHandler) Qualifications(c *gin.Context) {
	values, err := h.tutors.Qualifications(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, values)
}
