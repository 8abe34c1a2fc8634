package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoattend/internal/config"
)

func TestObjectKey(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	assert.Equal(t, "user-1/1700000000123.jpg", ObjectKey("user-1", ts))
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key, user string
		ok        bool
	}{
		{"u1/1.jpg", "u1", true},
		{"u1/1.jpg", "", true},
		{"u2/1.jpg", "u1", false},
		{"u1/../u2/1.jpg", "u1", false},
		{"/u1/1.jpg", "u1", false},
		{"u1//1.jpg", "u1", false},
		{"", "", false},
		{"u10/1.jpg", "u1", false},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.key, tt.user)
		if tt.ok {
			assert.NoError(t, err, tt.key)
		} else {
			assert.Error(t, err, tt.key)
		}
	}
}

func TestLocalUpload(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocal("attendance-photos", dir, "http://localhost:8081/media/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Upload(ctx, "u1/1.jpg", strings.NewReader("jpeg"), "image/jpeg"))
	data, err := os.ReadFile(filepath.Join(dir, "attendance-photos", "u1", "1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "http://localhost:8081/media/attendance-photos/u1/1.jpg", b.PublicURL("u1/1.jpg"))
	assert.Equal(t, dir, b.Dir())

	err = b.Upload(ctx, "u1/1.jpg", strings.NewReader("again"), "image/jpeg")
	assert.ErrorIs(t, err, ErrExists)

	assert.Error(t, b.Upload(ctx, "../escape.jpg", strings.NewReader("x"), "image/jpeg"))
}

func TestMemoryUpload(t *testing.T) {
	m := NewMemory("attendance-photos", "http://media")
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, "u1/1.jpg", bytes.NewReader([]byte{1, 2}), "image/jpeg"))
	obj, ok := m.Get("u1/1.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	m.FailWith(errors.New("Bucket not found"))
	err := m.Upload(ctx, "u1/2.jpg", bytes.NewReader(nil), "image/jpeg")
	assert.EqualError(t, err, "Bucket not found")
	assert.Len(t, m.Keys(), 1)
}

func TestCloudinaryUpload(t *testing.T) {
	var gotFields map[string]string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		if f, _, err := r.FormFile("file"); assert.NoError(t, err) {
			gotFile, _ = io.ReadAll(f)
		}
		_, _ = w.Write([]byte(`{"public_id":"attendance-photos/u1/1","secure_url":"https://res.cloudinary.com/demo/image/upload/attendance-photos/u1/1.jpg"}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "attendance-photos")
	c.APIBase = srv.URL
	c.Now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, c.Upload(context.Background(), "u1/1.jpg", strings.NewReader("jpeg"), "image/jpeg"))
	assert.Equal(t, "u1/1", gotFields["public_id"])
	assert.Equal(t, "attendance-photos", gotFields["folder"])
	assert.Equal(t, "1700000000", gotFields["timestamp"])
	assert.Equal(t, c.sign(map[string]string{
		"folder": "attendance-photos", "public_id": "u1/1", "timestamp": "1700000000", "overwrite": "false",
	}), gotFields["signature"])
	assert.Equal(t, "jpeg", string(gotFile))

	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/attendance-photos/u1/1.jpg", c.PublicURL("u1/1.jpg"))
}

func TestCloudinaryErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "attendance-photos")
	c.APIBase = srv.URL
	err := c.Upload(context.Background(), "u1/1.jpg", strings.NewReader("jpeg"), "image/jpeg")
	assert.EqualError(t, err, "Invalid Signature")
}

func TestOpen(t *testing.T) {
	cfg := config.App{StorageBackend: "memory", Bucket: "b", PublicBaseURL: "http://x"}
	b, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, "b", b.Name())

	cfg.StorageBackend = "local"
	cfg.StorageDir = t.TempDir()
	b, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, b)

	cfg.StorageBackend = "s3"
	_, err = Open(cfg)
	assert.Error(t, err)
}
