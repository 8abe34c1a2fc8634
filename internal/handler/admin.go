package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photoattend/internal/httpmiddleware"
)

// AdminStats returns the dashboard counts.
func (h *Handler) AdminStats(c *gin.Context) {
	st, err := h.Attendance.Stats(c.Request.Context())
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// AdminRecords lists every check-in with its owner's email and name.
func (h *Handler) AdminRecords(c *gin.Context) {
	before, err := parseBefore(c)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	page, err := h.Attendance.AllRecords(c.Request.Context(), before)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// AdminUsers lists every profile with its effective role.
func (h *Handler) AdminUsers(c *gin.Context) {
	users, err := h.Attendance.Users(c.Request.Context())
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ToggleRole flips the target user between admin and user, then answers with
// the role list read back from the store rather than a locally patched copy.
func (h *Handler) ToggleRole(c *gin.Context) {
	userID := c.Param("id")
	role, err := h.Attendance.ToggleRole(c.Request.Context(), userID)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	users, err := h.Attendance.Users(c.Request.Context())
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role, "users": users})
}
