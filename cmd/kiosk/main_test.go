package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/handler"
	"photoattend/internal/storage"
	"photoattend/internal/store"
)

func newAPI(t *testing.T) (string, *storage.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	signer := auth.NewSigner("photoattend", "test-key", time.Minute, time.Hour)
	authSvc := auth.NewService(db, signer)
	_, err = authSvc.CreateUser(ctx, "desk@example.com", "secret123", "Front Desk", attendance.RoleUser)
	require.NoError(t, err)

	roles := store.NewRoles(db.X)
	bucket := storage.NewMemory("attendance-photos", "http://media.test")
	h := &handler.Handler{
		DB:         db,
		Auth:       authSvc,
		Signer:     signer,
		Attendance: attendance.NewService(store.NewProfiles(db.X), roles, store.NewRecords(db.X)),
		Roles:      roles,
		Bucket:     bucket,
	}
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv.URL, bucket
}

func baseOptions(url string) options {
	return options{
		apiURL:   url,
		bucket:   "attendance-photos",
		email:    "desk@example.com",
		password: "secret123",
		device:   "synthetic",
		quality:  80,
		wait:     2 * time.Second,
	}
}

func TestRunSynthetic(t *testing.T) {
	url, bucket := newAPI(t)
	o := baseOptions(url)
	o.note = "morning"
	o.location = "Lobby"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Contains(t, out.String(), "signed in as desk@example.com (user)")
	assert.Contains(t, out.String(), "captured 1280x720 photo")
	assert.Contains(t, out.String(), "recent check-ins (1):")
	assert.Contains(t, out.String(), "@Lobby  morning")
	assert.Len(t, bucket.Keys(), 1)
}

func TestRunStillImage(t *testing.T) {
	url, bucket := newAPI(t)
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	path := filepath.Join(t.TempDir(), "face.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	o := baseOptions(url)
	o.device = "still"
	o.image = path

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Contains(t, out.String(), "captured 32x24 photo")
	keys := bucket.Keys()
	require.Len(t, keys, 1)
	obj, _ := bucket.Get(keys[0])
	assert.Equal(t, "image/jpeg", obj.ContentType)
}

func TestRunFailures(t *testing.T) {
	url, _ := newAPI(t)

	o := baseOptions(url)
	o.password = "wrong-pass"
	err := run(context.Background(), o, &bytes.Buffer{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	o = baseOptions(url)
	o.device = "still"
	err = run(context.Background(), o, &bytes.Buffer{})
	assert.EqualError(t, err, "-image is required with -device still")

	dev, err := openDevice(options{device: "webcam"})
	assert.Nil(t, dev)
	assert.Error(t, err)

	o = baseOptions(url)
	o.history = true
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Contains(t, out.String(), "recent check-ins (0):")
}
