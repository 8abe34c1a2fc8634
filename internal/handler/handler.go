// Package handler exposes the attendance service over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "photoattend/docs"
	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/httpmiddleware"
	"photoattend/internal/metrics"
	"photoattend/internal/queue"
	"photoattend/internal/storage"
	"photoattend/internal/store"
)

// maxPhotoBytes bounds request bodies carrying a photo.
const maxPhotoBytes = 10 << 20

// Handler holds the collaborators every route needs.
type Handler struct {
	DB         *store.DB
	Redis      *store.Redis // nil when the queue runs in memory
	Auth       *auth.Service
	Signer     *auth.Signer
	Attendance *attendance.Service
	Roles      auth.RoleLookup
	Bucket     storage.Bucket
	Queue      queue.Queue
	Metrics    *metrics.Metrics
	Limiter    *httpmiddleware.SimpleTokenBucket

	CORSOrigins []string
}

// Router builds the gin engine with middleware and every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestIDMiddleware())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware())
	}
	r.Use(corsMiddleware(h.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	if err := r.SetTrustedProxies(nil); err != nil {
		slog.Warn("trusted proxies not applied", "err", err)
	}

	r.GET("/healthz", h.Healthz)
	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics.Handler())
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if local, ok := h.Bucket.(*storage.Local); ok {
		r.Static("/media", local.Dir())
	}

	limit := func(c *gin.Context) { c.Next() }
	if h.Limiter != nil {
		limit = h.Limiter.GinMiddleware(auth.CtxUserIDKey)
	}

	v1 := r.Group("/v1")
	public := v1.Group("/auth", limit)
	public.POST("/signup", h.Signup)
	public.POST("/login", h.Login)
	public.POST("/refresh", h.Refresh)
	public.POST("/logout", h.Logout)

	user := v1.Group("", auth.RequireUser(h.Signer), limit)
	user.GET("/me", h.Me)
	user.POST("/checkins", h.CreateCheckin)
	user.GET("/checkins", h.History)
	user.PUT("/storage/:bucket/*key", h.UploadObject)
	user.POST("/records", h.CreateRecord)

	admin := user.Group("/admin", auth.RequireRole(h.Roles, attendance.RoleAdmin))
	admin.GET("/stats", h.AdminStats)
	admin.GET("/records", h.AdminRecords)
	admin.GET("/users", h.AdminUsers)
	admin.POST("/users/:id/role/toggle", h.ToggleRole)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", httpmiddleware.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// Healthz reports database and, when configured, redis connectivity.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{"db": h.DB.Healthy(ctx)}
	ok := body["db"] == true
	if h.Redis != nil {
		redisOK := h.Redis.Healthy(ctx)
		body["redis"] = redisOK
		ok = ok && redisOK
	}
	status := http.StatusOK
	body["status"] = "ok"
	if !ok {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// parseBefore reads the optional ?before= cursor returned as next_cursor.
func parseBefore(c *gin.Context) (*attendance.Cursor, error) {
	raw := strings.TrimSpace(c.Query("before"))
	if raw == "" {
		return nil, nil
	}
	cur, err := attendance.ParseCursor(raw)
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "before must be a cursor or an RFC 3339 timestamp, got %q", raw)
	}
	return &cur, nil
}

// publish announces a stored record. The check-in already succeeded, so failures are only logged.
func (h *Handler) publish(c *gin.Context, rec attendance.Record) {
	if h.Queue == nil {
		return
	}
	err := queue.PublishCheckin(c.Request.Context(), h.Queue, rec)
	if h.Metrics != nil {
		h.Metrics.EventPublished(err)
	}
	if err != nil {
		slog.Warn("check-in event publish failed",
			"request_id", httpmiddleware.RequestID(c), "record_id", rec.ID, "err", err)
	}
}
