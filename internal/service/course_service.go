package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/repository"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
	"github.com/noah-isme/learning-portal-api/pkg/jobs"
	"github.com/noah-isme/learning-portal-api/pkg/storage"
)

// JobAssetCleanup removes stored assets of a deleted or replaced course file.
const JobAssetCleanup = "course.asset_cleanup"

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.CatalogCourse, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.CatalogCourse, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetAsset(ctx context.Context, id string, kind models.AssetKind, url *string) error
	Delete(ctx context.Context, id string) error
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context)
}

type jobEnqueuer interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

type prefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// CourseInput is the admin payload for creating or updating a course.
type CourseInput struct {
	Code        string  `json:"code" validate:"required,max=32"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	IsFree      bool    `json:"is_free"`
	Price       float64 `json:"price" validate:"gte=0"`
	NotesURL    *string `json:"notes_url" validate:"omitempty,url"`
	PYQURL      *string `json:"pyq_url" validate:"omitempty,url"`
	VideoURL    *string `json:"video_url" validate:"omitempty,url"`
}

// AssetUpload describes an uploaded file.
type AssetUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AssetCleanup is the payload of JobAssetCleanup.
type AssetCleanup struct {
	CourseID string
	Keys     []string
	// WholeCourse removes everything stored under the course prefix.
	WholeCourse bool
}

// CourseServiceConfig bounds asset uploads.
type CourseServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// CourseService implements admin course management.
type CourseService struct {
	repo      courseRepository
	store     storage.ObjectStore
	queue     jobEnqueuer
	catalog   catalogInvalidator
	cache     *CacheService
	validator *validator.Validate
	config    CourseServiceConfig
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService and registers its cleanup job.
func NewCourseService(repo courseRepository, store storage.ObjectStore, queue jobEnqueuer, catalog catalogInvalidator, cache *CacheService, validate *validator.Validate, config CourseServiceConfig, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CourseService{
		repo:      repo,
		store:     store,
		queue:     queue,
		catalog:   catalog,
		cache:     cache,
		validator: validate,
		config:    config,
		logger:    logger,
	}
	if queue != nil {
		queue.Register(JobAssetCleanup, svc.handleAssetCleanup)
	}
	return svc
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CatalogCourse, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// ListOwned returns the courses created by admin, newest first.
func (s *CourseService) ListOwned(ctx context.Context, admin *models.Identity) ([]models.CatalogCourse, error) {
	courses, err := s.repo.ListByCreator(ctx, admin.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Create validates input and stores a new course owned by admin.
func (s *CourseService) Create(ctx context.Context, admin *models.Identity, in CourseInput) (*models.Course, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	course := &models.Course{CreatorID: admin.ID}
	applyCourseInput(course, in)
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, courseWriteError(err, "failed to create course")
	}
	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("creator_id", admin.ID))
	return course, nil
}

// Update replaces the editable fields of a course owned by admin.
func (s *CourseService) Update(ctx context.Context, admin *models.Identity, id string, in CourseInput) (*models.Course, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	existing, err := s.owned(ctx, admin, id)
	if err != nil {
		return nil, err
	}
	course := existing.Course
	applyCourseInput(&course, in)
	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, courseWriteError(err, "failed to update course")
	}
	s.invalidate(ctx)
	return &course, nil
}

// Delete removes a course owned by admin and schedules cleanup of its assets.
func (s *CourseService) Delete(ctx context.Context, admin *models.Identity, id string) error {
	existing, err := s.owned(ctx, admin, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return courseWriteError(err, "failed to delete course")
	}
	s.invalidate(ctx)

	var keys []string
	for _, url := range []*string{existing.ThumbnailURL, existing.NotesURL, existing.PYQURL, existing.VideoURL} {
		if key, ok := s.assetKey(url); ok {
			keys = append(keys, key)
		}
	}
	s.scheduleCleanup(ctx, AssetCleanup{CourseID: id, Keys: keys, WholeCourse: true})
	s.logger.Info("course deleted", zap.String("course_id", id), zap.Int("assets", len(keys)))
	return nil
}

// UploadAsset stores a file for the course and records its public URL. A
// previously stored file of the same kind is cleaned up in the background.
func (s *CourseService) UploadAsset(ctx context.Context, admin *models.Identity, id string, kind models.AssetKind, upload AssetUpload) (*models.Course, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown asset kind")
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "file storage is not configured")
	}
	existing, err := s.owned(ctx, admin, id)
	if err != nil {
		return nil, err
	}

	contentType, err := s.checkUpload(kind, upload)
	if err != nil {
		return nil, err
	}

	key := storage.AssetKey(id, string(kind), upload.Filename)
	if err := s.store.Upload(ctx, key, upload.Body, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	url := s.store.PublicURL(key)
	if err := s.repo.SetAsset(ctx, id, kind, &url); err != nil {
		s.scheduleCleanup(ctx, AssetCleanup{CourseID: id, Keys: []string{key}})
		return nil, courseWriteError(err, "failed to save course asset")
	}
	s.invalidate(ctx)

	course := existing.Course
	previous := setAssetURL(&course, kind, &url)
	if oldKey, ok := s.assetKey(previous); ok && oldKey != key {
		s.scheduleCleanup(ctx, AssetCleanup{CourseID: id, Keys: []string{oldKey}})
	}
	return &course, nil
}

func (s *CourseService) owned(ctx context.Context, admin *models.Identity, id string) (*models.CatalogCourse, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.CreatorID != admin.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only manage courses you created")
	}
	return course, nil
}

func (s *CourseService) validate(in *CourseInput) error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.NotesURL = trimOptional(in.NotesURL)
	in.PYQURL = trimOptional(in.PYQURL)
	in.VideoURL = trimOptional(in.VideoURL)
	if in.IsFree {
		in.Price = 0
	}
	if err := s.validator.Struct(in); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	return nil
}

func (s *CourseService) checkUpload(kind models.AssetKind, upload AssetUpload) (string, error) {
	if upload.Body == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if s.config.MaxFileSizeBytes > 0 && upload.Size > s.config.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}

	contentType := upload.ContentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeForKey(filepath.Base(upload.Filename))
	}
	if len(s.config.AllowedMIMEs) > 0 && !containsFold(s.config.AllowedMIMEs, contentType) {
		return "", appErrors.Clone(appErrors.ErrUnsupportedContent, "file type is not allowed")
	}
	if !kindAccepts(kind, contentType) {
		return "", appErrors.Clone(appErrors.ErrUnsupportedContent, "file type does not match the asset kind")
	}
	return contentType, nil
}

func (s *CourseService) assetKey(url *string) (string, bool) {
	if url == nil || *url == "" || s.store == nil {
		return "", false
	}
	return s.store.KeyFromURL(*url)
}

func (s *CourseService) scheduleCleanup(ctx context.Context, payload AssetCleanup) {
	if s.store == nil || (len(payload.Keys) == 0 && !payload.WholeCourse) {
		return
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{Type: JobAssetCleanup, Payload: payload})
		if err == nil {
			return
		}
		s.logger.Warn("asset cleanup not queued, running inline", zap.String("course_id", payload.CourseID), zap.Error(err))
	}
	if err := s.handleAssetCleanup(ctx, jobs.Job{Type: JobAssetCleanup, Payload: payload}); err != nil {
		s.logger.Warn("inline asset cleanup failed", zap.String("course_id", payload.CourseID), zap.Error(err))
	}
}

func (s *CourseService) handleAssetCleanup(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(AssetCleanup)
	if !ok {
		return errors.New("asset cleanup: unexpected payload")
	}
	if payload.WholeCourse {
		if deleter, ok := s.store.(prefixDeleter); ok {
			return deleter.DeletePrefix(ctx, "courses/"+payload.CourseID+"/")
		}
	}
	var errs []error
	for _, key := range payload.Keys {
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePrefix+"*")
}

func applyCourseInput(course *models.Course, in CourseInput) {
	course.Code = in.Code
	course.Name = in.Name
	course.Description = in.Description
	course.IsFree = in.IsFree
	course.Price = in.Price
	course.NotesURL = in.NotesURL
	course.PYQURL = in.PYQURL
	course.VideoURL = in.VideoURL
}

// setAssetURL stores url on the matching field and returns the previous value.
func setAssetURL(course *models.Course, kind models.AssetKind, url *string) *string {
	var field **string
	switch kind {
	case models.AssetThumbnail:
		field = &course.ThumbnailURL
	case models.AssetNotes:
		field = &course.NotesURL
	case models.AssetPYQ:
		field = &course.PYQURL
	case models.AssetVideo:
		field = &course.VideoURL
	default:
		return nil
	}
	previous := *field
	*field = url
	return previous
}

func courseWriteError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrCourseCodeTaken):
		return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func kindAccepts(kind models.AssetKind, contentType string) bool {
	switch kind {
	case models.AssetThumbnail:
		return strings.HasPrefix(contentType, "image/")
	case models.AssetVideo:
		return strings.HasPrefix(contentType, "video/")
	case models.AssetNotes, models.AssetPYQ:
		return contentType == "application/pdf"
	}
	return false
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
