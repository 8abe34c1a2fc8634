// Package storage holds check-in photos. Every backend is scoped to one bucket
// and hands out public URLs synchronously, with no signed-URL expiry.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"photoattend/internal/config"
)

// ErrExists is returned when an object already exists at the key.
var ErrExists = errors.New("resource already exists")

// Bucket stores objects under keys and resolves their public URLs.
type Bucket interface {
	Name() string
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	PublicURL(key string) string
}

// Stater is implemented by buckets that can tell whether a key is stored.
type Stater interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Exists reports whether key is stored in b. Buckets that cannot tell report true.
func Exists(ctx context.Context, b Bucket, key string) (bool, error) {
	st, ok := b.(Stater)
	if !ok {
		return true, nil
	}
	return st.Exists(ctx, key)
}

// ObjectKey names a check-in photo: <userId>/<epochMillis>.jpg.
func ObjectKey(userID string, t time.Time) string {
	return fmt.Sprintf("%s/%d.jpg", userID, t.UnixMilli())
}

// ValidateKey checks that key is a clean relative path owned by userID.
// An empty userID skips the ownership check.
func ValidateKey(key, userID string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key %q", key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	if userID != "" && !strings.HasPrefix(key, userID+"/") {
		return fmt.Errorf("object key %q is outside %s/", key, userID)
	}
	return nil
}

// Open builds the bucket selected by storage.backend.
func Open(cfg config.App) (Bucket, error) {
	switch cfg.StorageBackend {
	case "local":
		return NewLocal(cfg.Bucket, cfg.StorageDir, cfg.PublicBaseURL)
	case "cloudinary":
		return NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.Bucket), nil
	case "memory":
		return NewMemory(cfg.Bucket, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}
