package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gorm.io/datatypes"

	"saska-advisor-go/internal/admin"
	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/config"
	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

// Deps is everything the router needs. Gateway may be nil when no AI
// provider is configured; AI routes then answer 503 and the question route
// serves the fallback.
type Deps struct {
	Config   *config.Config
	Store    store.Store
	Auth     *auth.Service
	Admin    *admin.Service
	Gateway  *ai.Gateway
	Progress assessment.ProgressFactory
	Logger   zerolog.Logger
}

type Server struct {
	cfg      *config.Config
	store    store.Store
	auth     *auth.Service
	admin    *admin.Service
	ai       *ai.Gateway
	progress assessment.ProgressFactory
	log      zerolog.Logger
}

func NewServer(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors(d.Config.AllowOrigins))
	r.Use(logging(d.Logger))
	r.Use(rateLimit(d.Config.RateLimitRPS, d.Config.RateLimitBurst))

	progress := d.Progress
	if progress == nil {
		progress = assessment.MemoryProgressFactory()
	}
	s := &Server{
		cfg:      d.Config,
		store:    d.Store,
		auth:     d.Auth,
		admin:    d.Admin,
		ai:       d.Gateway,
		progress: progress,
		log:      d.Logger,
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// Auth
	r.POST("/auth/register", s.authRegister)
	r.POST("/auth/login", s.authLogin)

	authed := AuthMiddleware(s.auth)
	r.POST("/auth/logout", authed, s.authLogout)

	me := r.Group("/me")
	me.Use(authed)
	{
		me.GET("", s.getMe)
		me.DELETE("", s.deleteMe)
		me.PUT("/password", s.changePassword)
		me.GET("/history", s.getHistory)
		me.POST("/history", s.saveHistory)
		me.GET("/progress", s.getProgress)
		me.PUT("/progress", s.putProgress)
		me.DELETE("/progress", s.clearProgress)
	}

	r.GET("/users", authed, requireAdmin(), s.listUsers)

	// AI
	api := r.Group("/api")
	{
		api.POST("/ai", authed, s.chat)
		api.POST("/ai/chat", authed, s.chat)
		api.POST("/ai/analyze-image", authed, s.analyzeImage)
		api.POST("/ai/plan", s.generatePlan)
		api.POST("/ai/question", s.nextQuestion)
		api.POST("/events/whatsapp-click", OptionalAuth(s.auth), s.whatsappClick)
	}

	adm := r.Group("/admin")
	adm.Use(authed, requireAdmin())
	{
		adm.GET("/stats", s.adminStats)
		adm.GET("/users", s.adminUsers)
		adm.GET("/users/:id", s.adminUser)
		adm.PUT("/users/:id/password", s.adminResetPassword)
		adm.DELETE("/users/:id", s.adminDeleteUser)
		adm.GET("/logs", s.adminLogs)
		adm.GET("/backup", s.adminBackup)
	}

	return r
}

// writeError maps sentinel errors to status codes. Unknown errors are
// logged and reported as 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": validationMessage(err)})
		return
	case errors.Is(err, models.ErrDuplicateEmail):
		status, code = http.StatusConflict, "email_taken"
	case errors.Is(err, models.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrUpstream):
		s.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("ai upstream failure")
		status, code = http.StatusBadGateway, "ai_upstream_error"
	default:
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		status, code = http.StatusInternalServerError, "internal_error"
	}
	c.JSON(status, gin.H{"error": code})
}

func validationMessage(err error) string {
	msg := err.Error()
	prefix := models.ErrValidation.Error() + ": "
	return strings.TrimPrefix(msg, prefix)
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout())
}

func (s *Server) aiUnavailable(c *gin.Context) bool {
	if s.ai != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai_unavailable"})
	return true
}

// POST /api/ai/chat, POST /api/ai
func (s *Server) chat(c *gin.Context) {
	var input struct {
		History []ai.ChatMessage `json:"history"`
		Message string           `json:"message"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}
	if strings.TrimSpace(input.Message) == "" {
		c.JSON(400, gin.H{"error": "message_required"})
		return
	}
	if s.aiUnavailable(c) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	answer, err := s.ai.Chat(ctx, input.History, input.Message)
	if err != nil {
		s.log.Error().Err(err).Str("user", userIDFrom(c)).Msg("chat failed")
		c.JSON(500, gin.H{"error": "ai_service_failed"})
		return
	}
	c.JSON(200, gin.H{"answer": answer})
}

// POST /api/ai/plan
func (s *Server) generatePlan(c *gin.Context) {
	var input struct {
		Answers     map[string]string `json:"answers"`
		Transcript  string            `json:"transcript"`
		PhoneNumber string            `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}
	transcript := strings.TrimSpace(input.Transcript)
	if transcript == "" && len(input.Answers) > 0 {
		transcript = assessment.Transcript(input.Answers)
	}
	if transcript == "" {
		c.JSON(400, gin.H{"error": "validation_error", "message": "answers or transcript required"})
		return
	}
	if input.PhoneNumber != "" && !assessment.ValidPhone(input.PhoneNumber) {
		c.JSON(400, gin.H{"error": "validation_error", "message": "invalid phone number"})
		return
	}
	if s.aiUnavailable(c) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	plan, err := s.ai.GeneratePlan(ctx, transcript)
	if err != nil {
		s.writeError(c, err)
		return
	}
	fillPlan(plan, input.Answers, input.PhoneNumber)
	c.JSON(200, plan)
}

// fillPlan copies what the client already knows into the generated plan.
// The model's userData and goal win when present.
func fillPlan(plan *models.Plan, answers map[string]string, phone string) {
	if len(answers) > 0 {
		plan.Answers = models.StringMap(answers)
		if plan.UserData.Data() == (models.UserData{}) {
			plan.UserData = datatypes.NewJSONType(assessment.UserDataFromAnswers(answers))
		}
		if plan.Goal == "" {
			plan.Goal = assessment.GoalFromAnswers(answers)
		}
	}
	if phone != "" {
		plan.PhoneNumber = phone
	}
}

// POST /api/ai/question always answers 200.
func (s *Server) nextQuestion(c *gin.Context) {
	var input struct {
		History     []ai.InterviewStep `json:"history"`
		BaseData    string             `json:"baseData"`
		BaseAnswers map[string]string  `json:"baseAnswers"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		s.log.Debug().Err(err).Msg("question request body ignored")
	}
	baseData := input.BaseData
	if baseData == "" && len(input.BaseAnswers) > 0 {
		baseData = assessment.BaseData(input.BaseAnswers)
	}

	if s.ai == nil {
		tag, err := language.Parse(s.cfg.AILocale)
		if err != nil {
			tag = language.Persian
		}
		c.JSON(200, ai.FallbackQuestion(tag))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	c.JSON(200, s.ai.NextQuestion(ctx, input.History, baseData))
}

// POST /api/ai/analyze-image
func (s *Server) analyzeImage(c *gin.Context) {
	// base64 inflates by 4/3; leave headroom for the JSON envelope.
	limit := s.cfg.MaxImageMB*1024*1024*4/3 + 64*1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var input struct {
		Image       string `json:"image" binding:"required"`
		Instruction string `json:"instruction"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image_too_large"})
			return
		}
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}
	if s.aiUnavailable(c) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	analysis, err := s.ai.AnalyzeImage(ctx, input.Image, input.Instruction)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"analysis": analysis})
}

// POST /api/events/whatsapp-click
func (s *Server) whatsappClick(c *gin.Context) {
	var input struct {
		Details string `json:"details"`
	}
	_ = c.ShouldBindJSON(&input)

	if _, err := s.admin.LogEvent(c.Request.Context(), models.LogWhatsAppClick, userIDFrom(c), input.Details); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
