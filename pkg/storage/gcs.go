package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures GCSStorage.
type GCSOptions struct {
	Bucket          string
	CDNDomain       string
	CredentialsFile string
}

// GCSStorage stores assets in a Google Cloud Storage bucket.
type GCSStorage struct {
	client    *storage.Client
	bucket    string
	cdnDomain string
	logger    *zap.Logger
}

// NewGCSStorage creates a storage client for opts.Bucket.
func NewGCSStorage(ctx context.Context, opts GCSOptions, logger *zap.Logger) (*GCSStorage, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("missing GCS bucket name")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	logger.Info("object storage initialized", zap.String("driver", "gcs"), zap.String("bucket", opts.Bucket))
	return &GCSStorage{
		client:    client,
		bucket:    opts.Bucket,
		cdnDomain: strings.TrimRight(strings.TrimSpace(opts.CDNDomain), "/"),
		logger:    logger,
	}, nil
}

// Upload implements ObjectStore.
func (s *GCSStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer %q: %w", key, err)
	}
	return nil
}

// Delete implements ObjectStore. Missing objects are not an error.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("delete object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

// DeletePrefix removes every object below prefix.
func (s *GCSStorage) DeletePrefix(ctx context.Context, prefix string) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list objects %q: %w", prefix, err)
		}
		if err := s.Delete(ctx, attrs.Name); err != nil {
			s.logger.Warn("failed to delete object", zap.String("key", attrs.Name), zap.Error(err))
		}
	}
}

// PublicURL implements ObjectStore.
func (s *GCSStorage) PublicURL(key string) string {
	return s.baseURL() + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL implements ObjectStore.
func (s *GCSStorage) KeyFromURL(url string) (string, bool) {
	prefix := s.baseURL() + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key, err := cleanKey(strings.TrimPrefix(url, prefix))
	return key, err == nil
}

// Close releases the storage client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) baseURL() string {
	if s.cdnDomain != "" {
		return "https://" + s.cdnDomain
	}
	return "https://storage.googleapis.com/" + s.bucket
}
