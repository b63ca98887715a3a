// File: internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/common"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/jobs"
	"student_portal_backend/internal/middleware"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	orphanSweepJob *jobs.OrphanSweepJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	bridge *auth.Bridge,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	userService user.Service,
	orphanSweepJob *jobs.OrphanSweepJob,
) (*Server, error) {
	if bridge.Mode() == auth.ModeDemo {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := auth.SeedDemoUser(ctx, userService); err != nil {
			return nil, fmt.Errorf("seeding demo user: %w", err)
		}
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	// Credentialed CORS needs explicit origins; "*" is rejected by browsers.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	sessionMW := middleware.SessionAuth(bridge, session.OptionsFromConfig(cfg), logger)

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := userService.Ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			common.RespondWithError(c, auth.ToAPIError(auth.NewError(auth.CodeDBConnectionFailed, err)))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP", "mode": bridge.Mode().String()})
	})

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1)
	userHandler.RegisterRoutes(v1, sessionMW, middleware.RequireVerifiedEmail())

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:     httpServer,
		router:         router,
		cfg:            cfg,
		logger:         logger,
		orphanSweepJob: orphanSweepJob,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.orphanSweepJob != nil {
		if err := s.orphanSweepJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start orphan sweep job", zap.Error(err))
		}
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.orphanSweepJob != nil {
		s.orphanSweepJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
