package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/internal/catalog"
	"github.com/noah-isme/learning-portal-api/internal/dto"
	"github.com/noah-isme/learning-portal-api/internal/enrollment"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/service"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type fakeBackend struct {
	mu       sync.Mutex
	sessions map[string]*models.AuthSession
	accounts map[string]string
	signOuts []string
}

func (f *fakeBackend) SignUp(_ context.Context, email, password string) (*models.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[email]; exists {
		return nil, appErrors.Clone(appErrors.ErrAuth, "User already registered")
	}
	f.accounts[email] = password
	sess := &models.AuthSession{UserID: "user-" + email, Email: email, AccessToken: "tok-" + email, ExpiresAt: time.Now().Add(time.Hour)}
	f.sessions[sess.AccessToken] = sess
	return sess, nil
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (*models.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, exists := f.accounts[email]; !exists || stored != password {
		return nil, appErrors.Clone(appErrors.ErrAuth, "Invalid login credentials")
	}
	for _, sess := range f.sessions {
		if sess.Email == email {
			return sess, nil
		}
	}
	sess := &models.AuthSession{UserID: "user-" + email, Email: email, AccessToken: "tok-" + email, ExpiresAt: time.Now().Add(time.Hour)}
	f.sessions[sess.AccessToken] = sess
	return sess, nil
}

func (f *fakeBackend) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, token)
	delete(f.sessions, token)
	return nil
}

func (f *fakeBackend) Session(_ context.Context, token string) (*models.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[token], nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func (f *fakeProfiles) FindProfile(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[id], nil
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.ID] = profile
	return nil
}

type fakeEnrollments struct {
	mu      sync.Mutex
	records map[string][]string
}

func (f *fakeEnrollments) ListCourseIDsByUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.records[userID]...), nil
}

func (f *fakeEnrollments) Create(_ context.Context, e *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.records[e.UserID] {
		if id == e.CourseID {
			return enrollment.ErrDuplicate
		}
	}
	e.ID = "enr-" + e.CourseID
	f.records[e.UserID] = append(f.records[e.UserID], e.CourseID)
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	views   map[string]service.LiveView
	updates []models.FilterPatch
	stream  chan catalog.Result
	courses []models.CatalogCourse
}

func (f *fakeCatalog) Evaluate(_ context.Context, state models.FilterState) catalog.Result {
	matched := catalog.Apply(catalog.FilterQuery(f.courses, catalog.Stage1Query(state)), state)
	return catalog.Result{State: state, Courses: matched, Creators: []string{}, Status: catalog.StatusSuccess, Generation: 1}
}

func (f *fakeCatalog) Open(initial *models.FilterState) service.LiveView {
	f.mu.Lock()
	defer f.mu.Unlock()
	view := service.LiveView{ID: "view-1", State: *initial, Result: catalog.Result{State: *initial, Status: catalog.StatusIdle}}
	f.views[view.ID] = view
	return view
}

func (f *fakeCatalog) Update(id string, patch models.FilterPatch) (service.LiveView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	view, exists := f.views[id]
	if !exists {
		return service.LiveView{}, appErrors.Clone(appErrors.ErrNotFound, "catalog view not found")
	}
	f.updates = append(f.updates, patch)
	view.State = patch.Apply(view.State)
	view.Result.Status = catalog.StatusLoading
	f.views[id] = view
	return view, nil
}

func (f *fakeCatalog) Get(id string) (service.LiveView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	view, exists := f.views[id]
	if !exists {
		return service.LiveView{}, appErrors.Clone(appErrors.ErrNotFound, "catalog view not found")
	}
	return view, nil
}

func (f *fakeCatalog) Subscribe(id string) (<-chan catalog.Result, func(), error) {
	if _, err := f.Get(id); err != nil {
		return nil, nil, err
	}
	return f.stream, func() {}, nil
}

func (f *fakeCatalog) Close(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.views[id]; !exists {
		return appErrors.Clone(appErrors.ErrNotFound, "catalog view not found")
	}
	delete(f.views, id)
	return nil
}

type fakeCourses struct {
	courses  map[string]models.CatalogCourse
	created  []service.CourseInput
	deleted  []string
	uploaded []service.AssetUpload
}

func (f *fakeCourses) Get(_ context.Context, id string) (*models.CatalogCourse, error) {
	c, exists := f.courses[id]
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return &c, nil
}

func (f *fakeCourses) ListOwned(_ context.Context, admin *models.Identity) ([]models.CatalogCourse, error) {
	var out []models.CatalogCourse
	for _, c := range f.courses {
		if c.CreatorID == admin.ID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCourses) Create(_ context.Context, admin *models.Identity, in service.CourseInput) (*models.Course, error) {
	f.created = append(f.created, in)
	return &models.Course{ID: "new-course", Code: in.Code, Name: in.Name, CreatorID: admin.ID}, nil
}

func (f *fakeCourses) Update(_ context.Context, admin *models.Identity, id string, in service.CourseInput) (*models.Course, error) {
	c, exists := f.courses[id]
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if c.CreatorID != admin.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	c.Name = in.Name
	return &c.Course, nil
}

func (f *fakeCourses) Delete(_ context.Context, admin *models.Identity, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCourses) UploadAsset(_ context.Context, _ *models.Identity, id string, kind models.AssetKind, upload service.AssetUpload) (*models.Course, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown asset kind")
	}
	f.uploaded = append(f.uploaded, upload)
	c := f.courses[id]
	return &c.Course, nil
}

type fakeExports struct {
	format string
}

func (f *fakeExports) Courses(_ context.Context, _ *models.Identity, format string) (*service.ExportFile, error) {
	f.format = format
	return &service.ExportFile{Filename: "courses-20260101-000000.csv", ContentType: "text/csv", Data: []byte("Code,Name\n")}, nil
}

type fakeDashboards struct {
	adminHit bool
}

func (f *fakeDashboards) Student(_ context.Context, identity *models.Identity) (*dto.StudentDashboardResponse, error) {
	return &dto.StudentDashboardResponse{}, nil
}

func (f *fakeDashboards) Admin(_ context.Context, identity *models.Identity) (*dto.AdminDashboardResponse, bool, error) {
	return &dto.AdminDashboardResponse{Courses: models.CourseStats{Total: 2}}, f.adminHit, nil
}

type testPortal struct {
	router      *gin.Engine
	backend     *fakeBackend
	profiles    *fakeProfiles
	enrollments *fakeEnrollments
	catalog     *fakeCatalog
	courses     *fakeCourses
	exports     *fakeExports
	dashboards  *fakeDashboards
}

const (
	studentToken = "tok-student"
	adminToken   = "tok-admin"
	orphanToken  = "tok-orphan"
)

func strPtr(s string) *string { return &s }

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	expires := time.Now().Add(time.Hour)
	p := &testPortal{
		backend: &fakeBackend{
			accounts: map[string]string{"ana@example.com": "secret1"},
			sessions: map[string]*models.AuthSession{
				studentToken: {UserID: "u-student", Email: "ana@example.com", AccessToken: studentToken, ExpiresAt: expires},
				adminToken:   {UserID: "u-admin", Email: "boss@example.com", AccessToken: adminToken, ExpiresAt: expires},
				orphanToken:  {UserID: "u-orphan", Email: "ghost@example.com", AccessToken: orphanToken, ExpiresAt: expires},
			},
		},
		profiles: &fakeProfiles{profiles: map[string]*models.Profile{
			"u-student": {ID: "u-student", Name: "Ana", Role: models.RoleStudent},
			"u-admin":   {ID: "u-admin", Name: "Boss", Role: models.RoleAdmin},
		}},
		enrollments: &fakeEnrollments{records: map[string][]string{"u-student": {"c-enrolled"}}},
		catalog:     &fakeCatalog{views: map[string]service.LiveView{}},
		courses: &fakeCourses{courses: map[string]models.CatalogCourse{
			"c-free":     {Course: models.Course{ID: "c-free", Code: "F1", Name: "Free One", IsFree: true, Price: 499, CreatorID: "u-admin", NotesURL: strPtr("https://cdn.test/notes.pdf")}, CreatorName: "Boss"},
			"c-paid":     {Course: models.Course{ID: "c-paid", Code: "P1", Name: "Paid One", Price: 799, CreatorID: "u-admin", VideoURL: strPtr("https://cdn.test/v.mp4")}, CreatorName: "Boss"},
			"c-enrolled": {Course: models.Course{ID: "c-enrolled", Code: "E1", Name: "Enrolled One", IsFree: true, CreatorID: "u-admin", PYQURL: strPtr("https://cdn.test/pyq.pdf")}, CreatorName: "Boss"},
		}},
		exports:    &fakeExports{},
		dashboards: &fakeDashboards{},
	}
	for _, c := range p.courses.courses {
		p.catalog.courses = append(p.catalog.courses, c)
	}

	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	api := r.Group("/api/v1")
	api.Use(middleware.Session(middleware.SessionDeps{
		Backend:     p.backend,
		Profiles:    p.profiles,
		Enrollments: p.enrollments,
		AdminCode:   "SECRET",
	}))
	RegisterRoutes(api, Handlers{
		Auth:        NewAuthHandler(),
		Catalog:     NewCatalogHandler(p.catalog),
		Courses:     NewCourseHandler(p.courses, p.exports),
		Enrollments: NewEnrollmentHandler(p.courses),
		Dashboard:   NewDashboardHandler(p.dashboards),
		Metrics:     NewMetricsHandler(service.NewMetricsService(), nil),
	})
	p.router = r
	return p
}

func (p *testPortal) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, req)

	var envelope responseEnvelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func decodeData(t *testing.T, envelope responseEnvelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// notificationMessages extracts the toast messages from response metadata.
func notificationMessages(envelope responseEnvelope) []string {
	raw, ok := envelope.Meta["notifications"].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if n, ok := item.(map[string]interface{}); ok {
			if msg, ok := n["message"].(string); ok {
				out = append(out, msg)
			}
		}
	}
	return out
}
