package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/pkg/storage"
)

func newFileRouter(t *testing.T) (*gin.Engine, *storage.LocalStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)
	r := gin.New()
	r.GET("/files/*key", NewFileHandler(store).Serve)
	return r, store
}

func TestFileHandlerServesStoredAsset(t *testing.T) {
	r, store := newFileRouter(t)
	require.NoError(t, store.Upload(context.Background(), "courses/c1/notes/a.pdf", strings.NewReader("%PDF-1.4"), "application/pdf"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/courses/c1/notes/a.pdf", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestFileHandlerMissingAsset(t *testing.T) {
	r, _ := newFileRouter(t)

	for _, path := range []string{"/files/courses/none.png", "/files/", "/files/courses"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}
