package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/models"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type courseReader interface {
	Get(ctx context.Context, id string) (*models.CatalogCourse, error)
}

type enrollRequest struct {
	CourseID string `json:"course_id" binding:"required"`
}

// EnrollmentHandler exposes the enrollment tracker.
type EnrollmentHandler struct {
	courses courseReader
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(courses courseReader) *EnrollmentHandler {
	return &EnrollmentHandler{courses: courses}
}

// Enroll godoc
// @Summary Enroll in a course
// @Description Free courses only; paid courses answer 402.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body enrollRequest true "Course to enroll in"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	tracker, ok := trackerFromContext(c)
	if !ok {
		return
	}
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "course_id is required"))
		return
	}
	course, err := h.courses.Get(c.Request.Context(), strings.TrimSpace(req.CourseID))
	if err != nil {
		fail(c, err)
		return
	}
	if err := tracker.Refresh(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	enrollment, err := tracker.Enroll(c.Request.Context(), course.Course)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, enrollment)
}

// List godoc
// @Summary Enrolled course IDs
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	tracker, ok := trackerFromContext(c)
	if !ok {
		return
	}
	if err := tracker.Refresh(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ids := tracker.CourseIDs()
	sort.Strings(ids)
	respond(c, http.StatusOK, gin.H{"course_ids": ids, "count": len(ids)})
}
