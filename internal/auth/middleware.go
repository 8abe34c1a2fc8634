package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/httpmiddleware"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

// RoleLookup resolves a user's current role.
type RoleLookup interface {
	Lookup(ctx context.Context, userID string) (attendance.Role, error)
}

// RequireUser enforces a bearer access token and stores its subject as the user id.
func RequireUser(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			httpmiddleware.Abort(c, apperr.New(apperr.KindUnauthenticated, "missing bearer token"))
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := signer.Parse(tokenStr, TypeAccess)
		if err != nil {
			httpmiddleware.Abort(c, apperr.New(apperr.KindUnauthenticated, "invalid token"))
			return
		}
		c.Set(CtxUserIDKey, claims.Subject)
		c.Next()
	}
}

// RequireRole admits the request only when the user's role, read fresh from the
// store, is one of allowed. Role changes apply from the next request on.
func RequireRole(roles RoleLookup, allowed ...attendance.Role) gin.HandlerFunc {
	set := make(map[attendance.Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			httpmiddleware.Abort(c, apperr.New(apperr.KindUnauthenticated, "sign in required"))
			return
		}
		role, err := roles.Lookup(c.Request.Context(), userID)
		if err != nil {
			httpmiddleware.Abort(c, apperr.Wrap(apperr.KindQueryFailed, err))
			return
		}
		if _, ok := set[role]; !ok {
			httpmiddleware.Abort(c, apperr.New(apperr.KindForbidden, "forbidden"))
			return
		}
		c.Set(CtxRoleKey, string(role))
		c.Next()
	}
}

// UserID returns the authenticated user id, or "".
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
