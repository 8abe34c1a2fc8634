package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/httpmiddleware"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// meResponse is the signed-in user with the route their role lands on.
type meResponse struct {
	Profile attendance.Profile `json:"profile"`
	Role    attendance.Role    `json:"role"`
	Home    string             `json:"home"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpmiddleware.Abort(c, apperr.Newf(apperr.KindInvalidArgument, "invalid request body: %v", err))
		return false
	}
	return true
}

// Signup creates an account with the user role and signs it in.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.Auth.Signup(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Logout revokes the refresh token. Access tokens expire on their own.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the caller's profile, current role and landing route.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)
	p, err := h.Attendance.Profile(ctx, userID)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	role, err := h.Attendance.RoleOf(ctx, userID)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, meResponse{Profile: p, Role: role, Home: role.Home()})
}
