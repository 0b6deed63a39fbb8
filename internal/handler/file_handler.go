package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/pkg/storage"
)

type fileOpener interface {
	Open(key string) (*os.File, error)
}

// FileHandler serves assets kept by the local object store.
type FileHandler struct {
	files fileOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(files fileOpener) *FileHandler {
	return &FileHandler{files: files}
}

// Serve streams the stored file named by the key path parameter.
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	file, err := h.files.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	if contentType := storage.ContentTypeForKey(key); contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Header("Cache-Control", "public, max-age=3600")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
