package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps objects on the filesystem under <dir>/<bucket>/<key>.
// The API serves <dir> at /media, so PublicURL is <baseURL>/<bucket>/<key>.
type Local struct {
	name    string
	root    string
	baseURL string
}

// NewLocal creates the bucket directory if needed.
func NewLocal(name, dir, baseURL string) (*Local, error) {
	root := filepath.Join(dir, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", root, err)
	}
	return &Local{name: name, root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Name() string { return l.name }

// Dir is the directory served at /media.
func (l *Local) Dir() string { return filepath.Dir(l.root) }

// Upload writes the object. Existing keys are never overwritten.
func (l *Local) Upload(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := ValidateKey(key, ""); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return ErrExists
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Link fails if dst appeared in the meantime.
	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	return nil
}

// Exists stats the object file.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	if err := ValidateKey(key, ""); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(l.root, filepath.FromSlash(key)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (l *Local) PublicURL(key string) string {
	return l.baseURL + "/" + l.name + "/" + key
}
