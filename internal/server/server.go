package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/acceptance"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/audit"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/config"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/content"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/events"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/handlers"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/middleware"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/reputation"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/votes"
)

type Server struct {
	cfg     *config.Config
	db      *database.Database
	handler *handlers.Handler
	sweeper *notifications.Sweeper
	bridge  *events.PGBridge

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires every service on top of db.
func NewServer(cfg *config.Config, db *database.Database) (*Server, error) {
	var pusher notifications.Pusher
	// Keep pusher a nil interface when SMS is off.
	if p := notifications.NewTwilioPusher(cfg.Twilio, cfg.PublicURL); p != nil {
		pusher = p
	}

	ledger := reputation.NewLedger()
	notifier := notifications.NewService(db, pusher)
	voteSvc := votes.NewService(db, ledger, notifier)
	acceptSvc := acceptance.NewService(db, ledger, notifier)

	bus := events.NewBus()
	contentSvc := content.NewService(db, acceptSvc, bus, notifier)
	content.RegisterCleanup(bus, db, voteSvc, notifier)

	auditor, err := audit.New(db)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		db:      db,
		sweeper: notifications.NewSweeper(notifier, cfg.DedupInterval),
	}

	if cfg.Database.Listen && db.Driver() == database.DriverPostgres {
		s.bridge = events.NewPGBridge(db.DB, cfg.Database.DSN(), bus)
		bus.SetBroadcaster(s.bridge)
	}

	s.handler = handlers.NewHandler(handlers.Deps{
		DB:            db,
		Votes:         voteSvc,
		Acceptance:    acceptSvc,
		Content:       contentSvc,
		Ledger:        ledger,
		Notifications: notifier,
		Sweeper:       s.sweeper,
		Auditor:       auditor,
	})

	if cfg.JWTSecret == "" {
		log.Println("⚠️ JWT_SECRET is empty; every protected route will reject requests")
	}
	return s, nil
}

// HTTPServer returns the configured http.Server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// StartBackground launches the notification sweep and, when enabled, the
// deletion event listener.
func (s *Server) StartBackground(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.sweeper.Start(ctx)

	if s.bridge != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.bridge.Listen(ctx); err != nil {
				log.Printf("❌ Event listener stopped: %v", err)
			}
		}()
	}
}

// StopBackground stops what StartBackground started.
func (s *Server) StopBackground() {
	s.sweeper.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()
	r.Use(middleware.RequestID())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	secret := []byte(s.cfg.JWTSecret)

	// API routes
	api := r.Group("/api")
	{
		// Public reads; a token, if present, adds the caller's own votes.
		public := api.Group("")
		public.Use(middleware.OptionalAuth(secret))
		{
			public.GET("/votes", s.handler.Vote.GetVotes)
			public.GET("/questions/:id", s.handler.Question.GetQuestion)
			public.GET("/users/:id", s.handler.User.GetUserProfile)
		}

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(secret))
		{
			protected.POST("/votes", s.handler.Vote.CastVote)

			protected.POST("/questions", s.handler.Question.CreateQuestion)
			protected.DELETE("/questions/:id", s.handler.Question.DeleteQuestion)
			protected.POST("/questions/:id/answers", s.handler.Answer.CreateAnswer)

			protected.POST("/answers/:id/accept", s.handler.Answer.AcceptAnswer)
			protected.DELETE("/answers/:id", s.handler.Answer.DeleteAnswer)

			protected.GET("/notifications", s.handler.Notification.GetNotifications)
			protected.PATCH("/notifications/:id/read", s.handler.Notification.MarkRead)
			protected.POST("/notifications/read-all", s.handler.Notification.MarkAllRead)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(secret), middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/notifications/sweep", s.handler.Admin.SweepNotifications)
			admin.GET("/reputation/audit", s.handler.Admin.AuditReputation)
		}
	}

	return r
}
