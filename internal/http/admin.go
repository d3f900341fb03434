package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"saska-advisor-go/internal/admin"
)

// GET /users
func (s *Server) listUsers(c *gin.Context) {
	users, err := s.admin.Users(c.Request.Context(), "")
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, users)
}

// GET /admin/stats
func (s *Server) adminStats(c *gin.Context) {
	stats, err := s.admin.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, stats)
}

// GET /admin/users?q=
func (s *Server) adminUsers(c *gin.Context) {
	users, err := s.admin.Users(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, users)
}

// GET /admin/users/:id
func (s *Server) adminUser(c *gin.Context) {
	user, err := s.admin.User(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, user)
}

// PUT /admin/users/:id/password
func (s *Server) adminResetPassword(c *gin.Context) {
	var input struct {
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	if err := s.admin.ResetPassword(c.Request.Context(), userIDFrom(c), c.Param("id"), input.NewPassword); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"ok": true})
}

// DELETE /admin/users/:id
func (s *Server) adminDeleteUser(c *gin.Context) {
	if err := s.admin.DeleteUser(c.Request.Context(), userIDFrom(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /admin/logs?limit=
func (s *Server) adminLogs(c *gin.Context) {
	limit := admin.RecentLogLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(400, gin.H{"error": "validation_error", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	logs, err := s.admin.Logs(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, logs)
}

// GET /admin/backup downloads the whole store as JSON.
func (s *Server) adminBackup(c *gin.Context) {
	backup, err := s.admin.Backup(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	name := fmt.Sprintf("saska_backup_%s.json", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.JSON(200, backup)
}
