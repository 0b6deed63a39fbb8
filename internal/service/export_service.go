package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/models"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
	"github.com/noah-isme/learning-portal-api/pkg/export"
)

type exportCourseReader interface {
	ListByCreator(ctx context.Context, creatorID string) ([]models.CatalogCourse, error)
}

type exportEnrollmentCounter interface {
	CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders an admin's course list as CSV or PDF.
type ExportService struct {
	courses     exportCourseReader
	enrollments exportEnrollmentCounter
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(courses exportCourseReader, enrollments exportEnrollmentCounter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{courses: courses, enrollments: enrollments, logger: logger, now: time.Now}
}

// Courses renders the courses created by admin in the requested format.
func (s *ExportService) Courses(ctx context.Context, admin *models.Identity, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	courses, err := s.courses.ListByCreator(ctx, admin.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	counts := map[string]int{}
	if len(ids) > 0 {
		if counts, err = s.enrollments.CountByCourse(ctx, ids); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
	}

	generatedAt := s.now().UTC()
	table := courseTable(courses, counts, fmt.Sprintf("Courses by %s (%s)", admin.DisplayName, generatedAt.Format("2006-01-02")))
	data, err := export.RendererFor(format).Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("course export rendered", zap.String("creator_id", admin.ID), zap.String("format", string(format)), zap.Int("rows", len(table.Rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("courses-%s.%s", generatedAt.Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

func courseTable(courses []models.CatalogCourse, counts map[string]int, title string) export.Table {
	table := export.Table{
		Title:   title,
		Columns: []string{"Code", "Name", "Pricing", "Price", "Video", "Materials", "Enrollments", "Created"},
		Rows:    make([][]string, 0, len(courses)),
	}
	for _, c := range courses {
		pricing := "paid"
		if c.IsFree {
			pricing = "free"
		}
		table.Rows = append(table.Rows, []string{
			c.Code,
			c.Name,
			pricing,
			strconv.FormatFloat(c.EffectivePrice(), 'f', 2, 64),
			yesNo(c.HasVideo()),
			yesNo(c.HasMaterials()),
			strconv.Itoa(counts[c.ID]),
			c.CreatedAt.UTC().Format("2006-01-02"),
		})
	}
	return table
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
