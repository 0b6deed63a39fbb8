// Package storage uploads course assets to local disk or Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/pkg/config"
)

// ErrNotFound is returned when deleting or opening a key that does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty after cleaning.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore stores binary assets by key and exposes them by public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	// KeyFromURL reverses PublicURL. It reports false for URLs this store did not issue.
	KeyFromURL(url string) (string, bool)
}

// New builds the ObjectStore selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ObjectStore, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	case config.StorageDriverGCS:
		return NewGCSStorage(ctx, GCSOptions{
			Bucket:          cfg.GCSBucket,
			CDNDomain:       cfg.GCSCDNDomain,
			CredentialsFile: cfg.GCSCredentials,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// AssetKey builds a unique object key such as courses/<id>/video/<uuid>.mp4.
func AssetKey(courseID, kind, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join("courses", courseID, kind, uuid.NewString()+ext)
}

// ContentTypeForKey infers a MIME type from the key extension. Unknown extensions
// return an empty string.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+strings.TrimSpace(key)), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}
