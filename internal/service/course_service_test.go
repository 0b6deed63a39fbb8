package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/internal/models"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

type courseFixture struct {
	svc     *CourseService
	repo    *memoryCourses
	store   *memoryObjectStore
	queue   *recordingQueue
	catalog *countingInvalidator
	admin   *models.Identity
}

func newCourseFixture(courses ...models.CatalogCourse) courseFixture {
	f := courseFixture{
		repo:    newMemoryCourses(courses...),
		store:   newMemoryObjectStore(),
		queue:   newRecordingQueue(),
		catalog: &countingInvalidator{},
		admin:   &models.Identity{ID: "admin-1", DisplayName: "Dr. Rao", Role: models.RoleAdmin},
	}
	f.svc = NewCourseService(f.repo, f.store, f.queue, f.catalog, nil, nil, CourseServiceConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"image/png", "application/pdf", "video/mp4"},
	}, nil)
	return f
}

func TestCourseCreateForcesZeroPriceForFreeCourses(t *testing.T) {
	f := newCourseFixture()

	course, err := f.svc.Create(context.Background(), f.admin, CourseInput{Code: " CS101 ", Name: "Intro", IsFree: true, Price: 499})

	require.NoError(t, err)
	assert.Equal(t, "CS101", course.Code)
	assert.Zero(t, course.Price)
	assert.Equal(t, "admin-1", course.CreatorID)
	assert.Equal(t, 1, f.catalog.calls)
}

func TestCourseCreateValidation(t *testing.T) {
	f := newCourseFixture()

	cases := map[string]CourseInput{
		"missing code":   {Name: "Intro"},
		"negative price": {Code: "CS1", Name: "Intro", Price: -1},
		"bad url":        {Code: "CS1", Name: "Intro", VideoURL: strPtr("not a url")},
	}
	for name, in := range cases {
		_, err := f.svc.Create(context.Background(), f.admin, in)
		require.Error(t, err, name)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, name)
	}
	assert.Zero(t, f.catalog.calls)
}

func TestCourseCreateDuplicateCode(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{ID: "c1", Code: "CS101", CreatorID: "admin-1"}})

	_, err := f.svc.Create(context.Background(), f.admin, CourseInput{Code: "CS101", Name: "Again"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateRequiresOwnership(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{ID: "c1", Code: "CS101", CreatorID: "someone-else"}})

	_, err := f.svc.Update(context.Background(), f.admin, "c1", CourseInput{Code: "CS101", Name: "Mine now"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Update(context.Background(), f.admin, "missing", CourseInput{Code: "X", Name: "Y"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseUploadAssetReplacesPreviousFile(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{
		ID: "c1", Code: "CS101", CreatorID: "admin-1", ThumbnailURL: strPtr("https://cdn.test/courses/c1/thumbnail/old.png"),
	}})

	course, err := f.svc.UploadAsset(context.Background(), f.admin, "c1", models.AssetThumbnail, AssetUpload{
		Filename: "cover.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png"),
	})

	require.NoError(t, err)
	require.NotNil(t, course.ThumbnailURL)
	assert.True(t, strings.HasPrefix(*course.ThumbnailURL, "https://cdn.test/courses/c1/thumbnail/"))
	assert.Len(t, f.store.objects, 1)

	require.Len(t, f.queue.jobs, 1)
	require.NoError(t, f.queue.drain(context.Background()))
	assert.Equal(t, []string{"courses/c1/thumbnail/old.png"}, f.store.deleted)

	stored, err := f.repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, course.ThumbnailURL, stored.ThumbnailURL)
}

func TestCourseUploadAssetRejectsBadFiles(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{ID: "c1", Code: "CS101", CreatorID: "admin-1"}})
	ctx := context.Background()

	_, err := f.svc.UploadAsset(ctx, f.admin, "c1", models.AssetNotes, AssetUpload{Filename: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	assert.Equal(t, appErrors.ErrUnsupportedContent.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadAsset(ctx, f.admin, "c1", models.AssetNotes, AssetUpload{Filename: "a.gif", ContentType: "image/gif", Size: 3, Body: strings.NewReader("gif")})
	assert.Equal(t, appErrors.ErrUnsupportedContent.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadAsset(ctx, f.admin, "c1", models.AssetNotes, AssetUpload{Filename: "a.pdf", ContentType: "application/pdf", Size: 4096, Body: strings.NewReader("pdf")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UploadAsset(ctx, f.admin, "c1", models.AssetKind("audio"), AssetUpload{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Empty(t, f.store.objects)
}

func TestCourseUploadAssetInfersTypeFromExtension(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{ID: "c1", Code: "CS101", CreatorID: "admin-1"}})

	course, err := f.svc.UploadAsset(context.Background(), f.admin, "c1", models.AssetPYQ, AssetUpload{
		Filename: "2023.pdf", ContentType: "application/octet-stream", Size: 3, Body: strings.NewReader("pdf"),
	})

	require.NoError(t, err)
	assert.True(t, course.HasPYQ())
}

func TestCourseDeleteSchedulesCleanup(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{
		ID: "c1", Code: "CS101", CreatorID: "admin-1",
		NotesURL: strPtr("https://cdn.test/courses/c1/notes/n.pdf"),
		VideoURL: strPtr("https://youtube.com/watch?v=1"),
	}})

	require.NoError(t, f.svc.Delete(context.Background(), f.admin, "c1"))

	_, err := f.repo.FindByID(context.Background(), "c1")
	assert.Error(t, err)
	require.Len(t, f.queue.jobs, 1)
	payload := f.queue.jobs[0].Payload.(AssetCleanup)
	assert.True(t, payload.WholeCourse)
	assert.Equal(t, []string{"courses/c1/notes/n.pdf"}, payload.Keys)

	require.NoError(t, f.queue.drain(context.Background()))
	assert.Equal(t, []string{"courses/c1/notes/n.pdf"}, f.store.deleted)
}

func TestCourseDeleteRunsCleanupInlineWhenQueueStopped(t *testing.T) {
	f := newCourseFixture(models.CatalogCourse{Course: models.Course{
		ID: "c1", Code: "CS101", CreatorID: "admin-1", NotesURL: strPtr("https://cdn.test/courses/c1/notes/n.pdf"),
	}})
	f.queue.err = errors.New("queue not running")

	require.NoError(t, f.svc.Delete(context.Background(), f.admin, "c1"))

	assert.Equal(t, []string{"courses/c1/notes/n.pdf"}, f.store.deleted)
}
