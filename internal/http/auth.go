package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/models"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/register
func (s *Server) authRegister(c *gin.Context) {
	var input registerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	session, err := s.auth.Register(c.Request.Context(), input.Email, input.Password, input.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// POST /auth/login
func (s *Server) authLogin(c *gin.Context) {
	var input loginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	session, err := s.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, session)
}

// POST /auth/logout
func (s *Server) authLogout(c *gin.Context) {
	_ = s.auth.Logout(c.Request.Context(), c.GetString(ctxToken))
	c.JSON(200, gin.H{"ok": true})
}

// GET /me
func (s *Server) getMe(c *gin.Context) {
	user, err := s.store.Users().FindByID(c.Request.Context(), userIDFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, user.Sanitized())
}

// DELETE /me removes the account and revokes the token used for the call.
func (s *Server) deleteMe(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.auth.DeleteAccount(ctx, userIDFrom(c)); err != nil {
		s.writeError(c, err)
		return
	}
	_ = s.auth.Logout(ctx, c.GetString(ctxToken))
	if err := s.progress(userIDFrom(c)).Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("clear progress of deleted account")
	}
	c.Status(http.StatusNoContent)
}

// PUT /me/password
func (s *Server) changePassword(c *gin.Context) {
	var input struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	if err := s.auth.ChangePassword(c.Request.Context(), userIDFrom(c), input.CurrentPassword, input.NewPassword); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"ok": true})
}

// GET /me/history
func (s *Server) getHistory(c *gin.Context) {
	user, err := s.store.Users().FindByID(c.Request.Context(), userIDFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	history := user.History
	if history == nil {
		history = []models.Plan{}
	}
	c.JSON(200, history)
}

// POST /me/history
func (s *Server) saveHistory(c *gin.Context) {
	var plan models.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}
	if plan.BodyCode == "" {
		c.JSON(400, gin.H{"error": "validation_error", "message": "bodyCode required"})
		return
	}

	user, err := s.auth.SaveResultToHistory(c.Request.Context(), userIDFrom(c), plan)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type progressBody struct {
	Phone       string            `json:"phone"`
	BaseAnswers map[string]string `json:"baseAnswers"`
}

// GET /me/progress
func (s *Server) getProgress(c *gin.Context) {
	ctx := c.Request.Context()
	p := s.progress(userIDFrom(c))

	phone, err := p.LoadPhone(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	answers, err := p.LoadBaseAnswers(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if answers == nil {
		answers = map[string]string{}
	}
	c.JSON(200, progressBody{Phone: phone, BaseAnswers: answers})
}

// PUT /me/progress overwrites whichever parts are present in the body.
func (s *Server) putProgress(c *gin.Context) {
	var input progressBody
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}
	if input.Phone != "" && !assessment.ValidPhone(input.Phone) {
		c.JSON(400, gin.H{"error": "validation_error", "message": "invalid phone number"})
		return
	}

	ctx := c.Request.Context()
	p := s.progress(userIDFrom(c))
	if input.Phone != "" {
		if err := p.SavePhone(ctx, input.Phone); err != nil {
			s.writeError(c, err)
			return
		}
	}
	if input.BaseAnswers != nil {
		if err := p.SaveBaseAnswers(ctx, input.BaseAnswers); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// DELETE /me/progress
func (s *Server) clearProgress(c *gin.Context) {
	if err := s.progress(userIDFrom(c)).Clear(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
