package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/learning-portal-api/internal/catalog"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/repository"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
	"github.com/noah-isme/learning-portal-api/pkg/jobs"
)

func strPtr(s string) *string { return &s }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

type memoryCourses struct {
	mu      sync.Mutex
	courses map[string]*models.CatalogCourse
	err     error
	queries int
}

func newMemoryCourses(courses ...models.CatalogCourse) *memoryCourses {
	m := &memoryCourses{courses: map[string]*models.CatalogCourse{}}
	for i := range courses {
		c := courses[i]
		m.courses[c.ID] = &c
	}
	return m
}

func (m *memoryCourses) sorted(keep func(models.CatalogCourse) bool) []models.CatalogCourse {
	out := []models.CatalogCourse{}
	for _, c := range m.courses {
		if keep(*c) {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memoryCourses) QueryCatalog(ctx context.Context, q models.CatalogQuery) ([]models.CatalogCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.err != nil {
		return nil, m.err
	}
	return catalog.FilterQuery(m.sorted(func(models.CatalogCourse) bool { return true }), q), nil
}

func (m *memoryCourses) FindByID(ctx context.Context, id string) (*models.CatalogCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *memoryCourses) ListByIDs(ctx context.Context, ids []string) ([]models.CatalogCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.sorted(func(c models.CatalogCourse) bool { return want[c.ID] }), nil
}

func (m *memoryCourses) ListByCreator(ctx context.Context, creatorID string) ([]models.CatalogCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(c models.CatalogCourse) bool { return c.CreatorID == creatorID }), nil
}

func (m *memoryCourses) Stats(ctx context.Context, creatorID string) (models.CourseStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats models.CourseStats
	for _, c := range m.courses {
		if creatorID != "" && c.CreatorID != creatorID {
			continue
		}
		stats.Total++
		if c.IsFree {
			stats.Free++
		} else {
			stats.Paid++
		}
	}
	return stats, nil
}

func (m *memoryCourses) Create(ctx context.Context, course *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.Code == course.Code {
			return repository.ErrCourseCodeTaken
		}
	}
	if course.ID == "" {
		course.ID = "course-" + course.Code
	}
	course.CreatedAt = time.Now().UTC()
	m.courses[course.ID] = &models.CatalogCourse{Course: *course}
	return nil
}

func (m *memoryCourses) Update(ctx context.Context, course *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Course = *course
	return nil
}

func (m *memoryCourses) SetAsset(ctx context.Context, id string, kind models.AssetKind, url *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	setAssetURL(&existing.Course, kind, url)
	return nil
}

func (m *memoryCourses) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

type memoryEnrollments struct {
	byUser   map[string][]string
	byCourse map[string]int
}

func (m *memoryEnrollments) ListCourseIDsByUser(ctx context.Context, userID string) ([]string, error) {
	return m.byUser[userID], nil
}

func (m *memoryEnrollments) Count(ctx context.Context, creatorID string) (int, error) {
	total := 0
	for _, n := range m.byCourse {
		total += n
	}
	return total, nil
}

func (m *memoryEnrollments) CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range courseIDs {
		if n, ok := m.byCourse[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type memoryProfiles map[models.Role]int

func (m memoryProfiles) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	return m, nil
}

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (m *memoryObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = buf.Bytes()
	m.mu.Unlock()
	return nil
}

func (m *memoryObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryObjectStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memoryObjectStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, "https://cdn.test/") {
		return "", false
	}
	return strings.TrimPrefix(url, "https://cdn.test/"), true
}

type recordingQueue struct {
	handlers map[string]jobs.Handler
	jobs     []jobs.Job
	err      error
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{handlers: map[string]jobs.Handler{}}
}

func (q *recordingQueue) Register(jobType string, handler jobs.Handler) {
	q.handlers[jobType] = handler
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// drain runs every queued job synchronously.
func (q *recordingQueue) drain(ctx context.Context) error {
	pending := q.jobs
	q.jobs = nil
	for _, job := range pending {
		if err := q.handlers[job.Type](ctx, job); err != nil {
			return err
		}
	}
	return nil
}
