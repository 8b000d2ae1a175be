package server

import (
	"net/http"

	"moderator/internal/config"
	"moderator/internal/handler"
	"moderator/internal/middleware"
	"moderator/internal/repository"
	"moderator/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type Server struct {
	router        *gin.Engine
	db            *sqlx.DB
	cfg           *config.Config
	log           *logrus.Logger
	logger        *zap.Logger
	submissionSvc *service.SubmissionService
}

func NewServer(db *sqlx.DB, cfg *config.Config, submissionSvc *service.SubmissionService, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router:        router,
		db:            db,
		cfg:           cfg,
		log:           logrus.New(),
		logger:        logger,
		submissionSvc: submissionSvc,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Auth components
	authRepo := repository.NewAuthRepository(s.db, s.log)
	authService := service.NewAuthService(authRepo, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.log)

	// Submission intake and status
	submissionHandler := handler.NewSubmissionHandler(s.submissionSvc, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Public intake and polling surface
	api := s.router.Group("/api")
	api.POST("/upload", submissionHandler.Upload)
	api.POST("/analyze-text", submissionHandler.AnalyzeText)
	api.GET("/analysis-status/:id", submissionHandler.Status)

	// Moderation dashboard routes require a valid token
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.logger))
	{
		authRequired.GET("/recent-submissions", submissionHandler.Recent)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
