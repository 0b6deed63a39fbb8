package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/dto"
	"github.com/noah-isme/learning-portal-api/internal/guard"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/service"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type courseService interface {
	Get(ctx context.Context, id string) (*models.CatalogCourse, error)
	ListOwned(ctx context.Context, admin *models.Identity) ([]models.CatalogCourse, error)
	Create(ctx context.Context, admin *models.Identity, in service.CourseInput) (*models.Course, error)
	Update(ctx context.Context, admin *models.Identity, id string, in service.CourseInput) (*models.Course, error)
	Delete(ctx context.Context, admin *models.Identity, id string) error
	UploadAsset(ctx context.Context, admin *models.Identity, id string, kind models.AssetKind, upload service.AssetUpload) (*models.Course, error)
}

type exportService interface {
	Courses(ctx context.Context, admin *models.Identity, format string) (*service.ExportFile, error)
}

// CourseHandler serves course pages and admin course management.
type CourseHandler struct {
	courses courseService
	exports exportService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(courses courseService, exports exportService) *CourseHandler {
	return &CourseHandler{courses: courses, exports: exports}
}

// Detail godoc
// @Summary Course page
// @Description Material links are only included for enrolled students and admins.
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Detail(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	enrolled := false
	if lookup := enrolledLookup(c); lookup != nil {
		enrolled = lookup(course.ID)
	}
	unlocked := enrolled || guard.Evaluate(middleware.GuardState(c), guard.RoleAdmin).Action == guard.ActionRender
	respond(c, http.StatusOK, dto.NewCourseDetail(*course, enrolled, unlocked))
}

// ListOwned godoc
// @Summary Courses created by the current admin
// @Tags Admin Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/courses [get]
func (h *CourseHandler) ListOwned(c *gin.Context) {
	admin, ok := identityFromContext(c)
	if !ok {
		return
	}
	courses, err := h.courses.ListOwned(c.Request.Context(), admin)
	if err != nil {
		fail(c, err)
		return
	}
	details := make([]dto.CourseDetail, 0, len(courses))
	for _, course := range courses {
		details = append(details, dto.NewCourseDetail(course, false, true))
	}
	respond(c, http.StatusOK, details)
}

// Create godoc
// @Summary Create a course
// @Description Free courses are stored with price 0.
// @Tags Admin Courses
// @Accept json
// @Produce json
// @Param payload body service.CourseInput true "Course"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	admin, ok := identityFromContext(c)
	if !ok {
		return
	}
	var in service.CourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), admin, in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, course)
}

// Update godoc
// @Summary Update a course
// @Tags Admin Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CourseInput true "Course"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	admin, ok := identityFromContext(c)
	if !ok {
		return
	}
	var in service.CourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), admin, c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, course)
}

// Delete godoc
// @Summary Delete a course
// @Description Stored assets are removed in the background.
// @Tags Admin Courses
// @Param id path string true "Course ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	admin, ok := identityFromContext(c)
	if !ok {
		return
	}
	if err := h.courses.Delete(c.Request.Context(), admin, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAsset godoc
// @Summary Upload a course asset
// @Tags Admin Courses
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param kind path string true "thumbnail, notes, pyq or video"
// @Param file formData file true "File"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /admin/courses/{id}/assets/{kind} [post]
func (h *CourseHandler) UploadAsset(c *gin.Context) {
	admin, ok := identityFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	course, err := h.courses.UploadAsset(c.Request.Context(), admin, c.Param("id"), models.AssetKind(c.Param("kind")), service.AssetUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, course)
}

// Export godoc
// @Summary Export own courses
// @Tags Admin Courses
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/courses/export [get]
func (h *CourseHandler) Export(c *gin.Context) {
	admin, ok := identityFromContext(c)
	if !ok {
		return
	}
	file, err := h.exports.Courses(c.Request.Context(), admin, c.Query("format"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
