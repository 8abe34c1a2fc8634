package httpmiddleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoattend/internal/apperr"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTokenBucket(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	ok, _ := l.take("a")
	assert.True(t, ok)
	ok, _ = l.take("a")
	assert.True(t, ok)
	ok, wait := l.take("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = l.take("b")
	assert.True(t, ok, "clients are limited independently")

	now = now.Add(time.Second)
	ok, _ = l.take("a")
	assert.True(t, ok, "one token refills per second at 60/min")

	now = now.Add(time.Hour)
	l.take("c")
	assert.NotContains(t, l.clients, "b", "idle buckets are swept")
}

func TestGinMiddlewareKeysByUser(t *testing.T) {
	l := NewSimpleTokenBucket(1, 1)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-User"); u != "" {
			c.Set("user_id", u)
		}
	}, l.GinMiddleware("user_id"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("u1").Code)
	rec := get("u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperr.KindRateLimited, body.Error.Code)

	assert.Equal(t, http.StatusOK, get("u2").Code)
	assert.Equal(t, http.StatusOK, get("").Code)
}

func TestRequestIDAndHeaders(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	id := rec.Header().Get(HeaderRequestID)
	assert.Len(t, id, 26, "ulid")
	assert.Equal(t, id, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Body.String())
}

func TestAbort(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    apperr.Kind
		message string
	}{
		{"classified", apperr.New(apperr.KindMissingPhoto, "Please capture a photo before checking in."), http.StatusBadRequest, apperr.KindMissingPhoto, "Please capture a photo before checking in."},
		{"backend failure keeps message", apperr.Wrap(apperr.KindUploadFailed, errors.New("Bucket not found")), http.StatusBadGateway, apperr.KindUploadFailed, "Bucket not found"},
		{"unclassified is hidden", errors.New("pq: connection refused"), http.StatusInternalServerError, apperr.KindInternal, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { Abort(c, tt.err) })
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}
