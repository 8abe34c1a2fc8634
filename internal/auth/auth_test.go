package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/httpmiddleware"
	"photoattend/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

func newSigner() *Signer {
	return NewSigner("photoattend", "test-key", 15*time.Minute, time.Hour)
}

func newService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db, newSigner()), db
}

func TestIssueAndParse(t *testing.T) {
	s := newSigner()
	pair, err := s.Issue("u1", "admin")
	require.NoError(t, err)

	claims, err := s.Parse(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)

	_, err = s.Parse(pair.RefreshToken, TypeAccess)
	assert.Error(t, err, "refresh token must not authenticate requests")

	other := NewSigner("photoattend", "other-key", time.Minute, time.Minute)
	_, err = other.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err)

	wrongIssuer := NewSigner("someone-else", "test-key", time.Minute, time.Minute)
	_, err = wrongIssuer.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	s := newSigner()
	s.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := s.Issue("u1", "user")
	require.NoError(t, err)

	s.Now = time.Now
	_, err = s.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("123")
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "correct horse"))
	assert.False(t, CheckPassword(h, "wrong horse"))
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Ann@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got)

	for _, bad := range []string{"", "ann", "Ann <ann@example.com>"} {
		_, err := NormalizeEmail(bad)
		assert.Error(t, err, bad)
	}
}

func TestSignupLoginRefreshLogout(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	sess, err := svc.Signup(ctx, "ann@example.com", "secret123", "Ann")
	require.NoError(t, err)
	assert.Equal(t, attendance.RoleUser, sess.Role)
	assert.NotEmpty(t, sess.AccessToken)

	p, err := store.NewProfiles(db.X).Get(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.FullName.String)

	_, err = svc.Signup(ctx, "ANN@example.com", "secret123", "")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.Login(ctx, "ann@example.com", "nope-nope")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	_, err = svc.Login(ctx, "bob@example.com", "secret123")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	login, err := svc.Login(ctx, "ann@example.com", "secret123")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// the old token was revoked by rotation
	_, err = svc.Refresh(ctx, login.RefreshToken)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestCreateUserWithRoleAndSetPassword(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	id, err := svc.CreateUser(ctx, "root@example.com", "secret123", "", attendance.RoleAdmin)
	require.NoError(t, err)
	role, err := store.NewRoles(db.X).Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, attendance.RoleAdmin, role)

	require.NoError(t, svc.SetPassword(ctx, id, "another-secret"))
	_, err = svc.Login(ctx, "root@example.com", "another-secret")
	assert.NoError(t, err)

	err = svc.SetPassword(ctx, "missing", "another-secret")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

type staticRoles map[string]attendance.Role

func (s staticRoles) Lookup(_ context.Context, id string) (attendance.Role, error) {
	if r, ok := s[id]; ok {
		return r, nil
	}
	return attendance.RoleUser, nil
}

func TestMiddleware(t *testing.T) {
	signer := newSigner()
	roles := staticRoles{"boss": attendance.RoleAdmin}

	r := gin.New()
	r.GET("/me", RequireUser(signer), func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })
	r.GET("/admin", RequireUser(signer), RequireRole(roles, attendance.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	token := func(sub string) string {
		pair, err := signer.Issue(sub, "user")
		require.NoError(t, err)
		return "Bearer " + pair.AccessToken
	}

	tests := []struct {
		name   string
		path   string
		authz  string
		status int
		code   apperr.Kind
	}{
		{"no header", "/me", "", http.StatusUnauthorized, apperr.KindUnauthenticated},
		{"garbage", "/me", "Bearer nonsense", http.StatusUnauthorized, apperr.KindUnauthenticated},
		{"user ok", "/me", token("u1"), http.StatusOK, ""},
		{"user on admin route", "/admin", token("u1"), http.StatusForbidden, apperr.KindForbidden},
		// the token says "user" but the store says admin, and the store wins
		{"admin from store", "/admin", token("boss"), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				var body httpmiddleware.ErrorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.code, body.Error.Code)
			}
		})
	}
}
