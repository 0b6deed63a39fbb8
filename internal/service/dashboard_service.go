package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/learning-portal-api/internal/dto"
	"github.com/noah-isme/learning-portal-api/internal/models"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type dashboardCourseReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.CatalogCourse, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.CatalogCourse, error)
	Stats(ctx context.Context, creatorID string) (models.CourseStats, error)
}

type dashboardEnrollmentReader interface {
	ListCourseIDsByUser(ctx context.Context, userID string) ([]string, error)
	Count(ctx context.Context, creatorID string) (int, error)
	CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
}

type dashboardProfileReader interface {
	CountByRole(ctx context.Context) (map[models.Role]int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL      time.Duration
	TopCoursesMax int
}

// DashboardService composes the student and admin dashboards.
type DashboardService struct {
	courses     dashboardCourseReader
	enrollments dashboardEnrollmentReader
	profiles    dashboardProfileReader
	metrics     *MetricsService
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Courses     dashboardCourseReader
	Enrollments dashboardEnrollmentReader
	Profiles    dashboardProfileReader
	Metrics     *MetricsService
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopCoursesMax <= 0 {
		cfg.TopCoursesMax = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		courses:     params.Courses,
		enrollments: params.Enrollments,
		profiles:    params.Profiles,
		metrics:     params.Metrics,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Student returns the courses the student is enrolled in. It is never cached
// because enrolling must show up immediately.
func (s *DashboardService) Student(ctx context.Context, identity *models.Identity) (*dto.StudentDashboardResponse, error) {
	ids, err := s.enrollments.ListCourseIDsByUser(ctx, identity.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	return &dto.StudentDashboardResponse{
		Identity:      identity,
		EnrolledCount: len(courses),
		Courses:       dto.NewCourseCards(courses, func(string) bool { return true }),
		GeneratedAt:   s.now().UTC(),
	}, nil
}

// Admin returns totals for the admin's courses and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context, identity *models.Identity) (*dto.AdminDashboardResponse, bool, error) {
	cacheKey := fmt.Sprintf("%sadmin:%s", dashboardCachePrefix, identity.ID)
	var cached dto.AdminDashboardResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		s.attachSystem(&cached)
		return &cached, true, nil
	}

	summary, err := s.composeAdmin(ctx, identity.ID)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("dashboard cache write skipped", zap.String("key", cacheKey))
	}
	s.attachSystem(summary)
	return summary, false, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context, creatorID string) (*dto.AdminDashboardResponse, error) {
	var (
		stats   models.CourseStats
		total   int
		roles   map[models.Role]int
		courses []models.CatalogCourse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.courses.Stats(gctx, creatorID)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.enrollments.Count(gctx, creatorID)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.profiles.CountByRole(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.courses.ListByCreator(gctx, creatorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose dashboard")
	}

	top, err := s.topCourses(ctx, courses)
	if err != nil {
		return nil, err
	}

	return &dto.AdminDashboardResponse{
		Courses:     stats,
		Enrollments: total,
		Users:       roles,
		TopCourses:  top,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *DashboardService) topCourses(ctx context.Context, courses []models.CatalogCourse) ([]dto.CourseEnrollment, error) {
	top := []dto.CourseEnrollment{}
	if len(courses) == 0 {
		return top, nil
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	counts, err := s.enrollments.CountByCourse(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	for _, c := range courses {
		top = append(top, dto.CourseEnrollment{CourseID: c.ID, Code: c.Code, Name: c.Name, Enrollments: counts[c.ID]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Enrollments > top[j].Enrollments
	})
	if len(top) > s.cfg.TopCoursesMax {
		top = top[:s.cfg.TopCoursesMax]
	}
	return top, nil
}

func (s *DashboardService) attachSystem(resp *dto.AdminDashboardResponse) {
	if s.metrics == nil {
		return
	}
	snapshot := s.metrics.Snapshot()
	resp.System = &snapshot
}
