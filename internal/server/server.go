// Package server is the storefront gateway: it owns the visitor sessions, runs the
// route guards on every navigation and serves the shopper and back-office screens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/storefront-dev/storefront/internal/auth"
	"github.com/storefront-dev/storefront/internal/backend"
	"github.com/storefront-dev/storefront/internal/config"
	"github.com/storefront-dev/storefront/internal/guard"
	"github.com/storefront-dev/storefront/internal/session"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	backend   *backend.Client
	sessions  *session.Manager
	signer    *auth.Signer
	version   string

	// Session store resources, set depending on SESSION_STORE
	db    *gorm.DB
	redis *redis.Client
}

// New creates a new server instance backed by the configured session store
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	store, db, rdb, err := openSessionStore(cfg, zlog)
	if err != nil {
		return nil, err
	}

	client := backend.New(cfg.Backend.URL, cfg.Backend.OAuthURL, cfg.Backend.Timeout)

	server, err := NewWithStore(cfg, zlog, store, client, version)
	if err != nil {
		return nil, err
	}
	server.db = db
	server.redis = rdb
	return server, nil
}

// NewWithStore creates a server on top of an existing session store and backend client
func NewWithStore(cfg *config.Config, zlog zerolog.Logger, store session.Store, client *backend.Client, version string) (*Server, error) {
	secret := cfg.Session.Secret
	if secret == "" {
		generated, err := auth.GenerateSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		zlog.Warn().Msg("SESSION_SECRET not set - using a random secret, sessions will not survive a restart")
	}

	signer, err := auth.NewSigner(secret)
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:    cfg,
		logger:    zlog,
		validator: newValidator(),
		backend:   client,
		sessions:  session.NewManager(store, cfg.Session.TTL, zlog.With().Str("component", "session").Logger()),
		signer:    signer,
		version:   version,
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no session required)
	s.router.GET("/health", s.healthCheck)

	s.router.NoRoute(s.notFound)

	site := s.router.Group("")
	site.Use(s.sessionMiddleware())

	site.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, guard.UserArea.Redirect)
	})

	// Shopper pages only reachable while signed out
	userPublic := site.Group("/user")
	userPublic.Use(s.restoreMiddleware(session.NamespaceUser), s.guardMiddleware(guard.UserLogin))
	{
		userPublic.GET("/signup", s.showSignup)
		userPublic.POST("/signup", s.signup)
		userPublic.GET("/verify-otp/:userId/:email", s.showVerifyOTP)
		userPublic.POST("/verify-otp/:userId/:email", s.verifyOTP)
		userPublic.POST("/verify-otp/:userId/:email/resend", s.resendOTP)
		userPublic.GET("/login", s.showLogin)
		userPublic.POST("/login", s.login)
		userPublic.GET("/auth/google", s.oauthStart)
		userPublic.GET("/auth/callback", s.oauthCallback)
	}

	// Shopper pages behind sign-in
	userArea := site.Group("/user")
	userArea.Use(s.restoreMiddleware(session.NamespaceUser), s.guardMiddleware(guard.UserArea))
	{
		userArea.GET("/home", s.home)
		userArea.GET("/Profile", s.profile)
		userArea.POST("/logout", s.logout)
	}

	adminPublic := site.Group("/admin")
	adminPublic.Use(s.restoreMiddleware(session.NamespaceAdmin), s.guardMiddleware(guard.AdminLogin))
	{
		adminPublic.GET("/login", s.showAdminLogin)
		adminPublic.POST("/login", s.adminLogin)
	}

	adminArea := site.Group("/admin")
	adminArea.Use(s.restoreMiddleware(session.NamespaceAdmin), s.guardMiddleware(guard.AdminArea))
	{
		adminArea.GET("/dashboard", s.dashboard)
		adminArea.POST("/logout", s.adminLogout)

		// Customers
		adminArea.GET("/data", s.customers)
		adminArea.PUT("/block/:userId", s.blockCustomer)

		// Products
		adminArea.GET("/productdata", s.products)
		adminArea.GET("/addproduct", s.showAddProduct)
		adminArea.POST("/addproduct", s.addProduct)
		adminArea.GET("/editproduct/:id", s.showEditProduct)
		adminArea.POST("/editproduct/:id", s.editProduct)

		// Categories
		adminArea.GET("/categorydata", s.categories)
		adminArea.GET("/addcategorydata", s.showAddCategory)
		adminArea.POST("/addcategorydata", s.addCategory)
		adminArea.GET("/editcategory/:id", s.showEditCategory)
		adminArea.POST("/editcategory/:id", s.editCategory)

		// Orders
		adminArea.GET("/Orders", s.orders)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "online",
		"timestamp":     time.Now().UTC(),
		"service":       "storefront",
		"version":       s.version,
		"session_store": s.config.Session.Store,
	})
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager for use by workers and the CLI
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Close releases the session store resources
func (s *Server) Close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.config.Server.Address

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.Backend.Timeout + 30*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing session store")
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
