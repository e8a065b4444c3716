package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/handler"
	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Institute *handler.InstituteHandler
	Admin     *handler.AdminHandler
	Student   *handler.StudentHandler
	Countdown *handler.CountdownHandler
	Health    *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the lifetime of the login rate limiter's cleanup loop.
func SetupRouter(
	ctx context.Context,
	auth middleware.Authenticator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Question payloads and listings compress well; upgrades are skipped.
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	// Rate limiter for login (10 attempts per minute per IP).
	loginLimiter := middleware.NewRateLimiter(ctx, 10, time.Minute)
	requireJWT := middleware.RequireJWT(auth)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		authAPI.POST("/logout", requireJWT, handlers.Auth.Logout)
		authAPI.GET("/me", requireJWT, handlers.Auth.Me)
	}

	// ─── 2. Institute Group ────────────────────────────────────────────
	instituteAPI := router.Group("/api/v1/institute")
	instituteAPI.Use(requireJWT, middleware.RequireRole(model.RoleInstitute))
	{
		instituteAPI.POST("/exams", handlers.Institute.SubmitExam)
		instituteAPI.GET("/exams", handlers.Institute.ListExams)
		instituteAPI.GET("/exams/:id", handlers.Institute.GetExam)
		instituteAPI.GET("/exams/:id/key", handlers.Institute.GetKey)
		instituteAPI.PUT("/exams/:id/exam-mode", handlers.Institute.SetExamMode)
		instituteAPI.POST("/exams/:id/release", handlers.Institute.ReleaseResults)
		instituteAPI.GET("/exams/:id/results", handlers.Institute.ListResults)
	}

	// ─── 3. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(requireJWT, middleware.RequireRole(model.RoleAdmin))
	{
		adminAPI.GET("/exams/pending", handlers.Admin.ListPending)
		adminAPI.GET("/exams/:id", handlers.Admin.GetExam)
		adminAPI.POST("/exams/:id/decision", handlers.Admin.Decide)
	}

	// ─── 4. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(requireJWT, middleware.RequireRole(model.RoleStudent))
	{
		studentAPI.POST("/exams/:handle/start", handlers.Student.StartExam)
		studentAPI.GET("/sessions", handlers.Student.ListSessions)
		studentAPI.POST("/sessions/:id/submit", handlers.Student.SubmitAnswers)
		studentAPI.GET("/sessions/:id/result", handlers.Student.GetResult)
	}

	// ─── 5. WebSocket Group ────────────────────────────────────────────
	// Browsers cannot set headers on upgrades, so RequireJWT also accepts
	// the token cookie or ?token=.
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(requireJWT, middleware.RequireRole(model.RoleStudent))
	{
		wsAPI.GET("/student/sessions/:id/countdown", handlers.Countdown.Stream)
	}

	return router
}
