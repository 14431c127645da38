// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	_ "socialnet/docs" // swagger docs
	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/database"
	"socialnet/internal/featureflags"
	"socialnet/internal/middleware"
	"socialnet/internal/models"
	"socialnet/internal/notifications"
	"socialnet/internal/repository"
	"socialnet/internal/search"
	"socialnet/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	repos repository.Repos
	tx    repository.TxManager

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	dispatcher   *notifications.Dispatcher
	featureFlags *featureflags.Manager
	limiter      *middleware.Limiter

	userService         *service.UserService
	friendService       *service.FriendService
	messageService      *service.MessageService
	notificationService *service.NotificationService
	postService         *service.PostService
	commentService      *service.CommentService
	bannerService       *service.BannerService
	analyticsService    *service.AnalyticsService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("socialnet-api"),
		repos:          repository.NewRepos(db),
		tx:             repository.NewTxManager(db),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		limiter:        middleware.NewLimiter(redisClient, middleware.LimiterEnabledFor(cfg.Env)),
	}

	// The hub always exists so single-instance deployments still get live
	// notifications; the notifier fans out across instances when Redis is up.
	s.hub = notifications.NewHub(redisClient)
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	s.dispatcher = notifications.NewDispatcher(s.notifier, s.hub)

	indexer := search.New(cfg.MeilisearchHost, cfg.MeilisearchAPIKey)

	s.analyticsService = service.NewAnalyticsService(s.repos.Analytics, s.repos.Users)
	s.userService = service.NewUserService(s.repos.Users, indexer, s.analyticsService)
	s.friendService = service.NewFriendService(s.repos.Friends, s.repos.Users, s.tx, s.dispatcher)
	s.messageService = service.NewMessageService(s.repos.Messages, s.repos.Users, s.tx, s.dispatcher,
		service.MessagingPolicy{RequireFriendship: cfg.MessagingRequireFriendship})
	s.notificationService = service.NewNotificationService(s.repos.Notifications)
	s.postService = service.NewPostService(s.repos.Posts, s.repos.Topics, s.tx, indexer, s.userService.IsAdmin)
	s.commentService = service.NewCommentService(s.repos.Comments, s.repos.Posts, s.userService.IsAdmin)
	s.bannerService = service.NewBannerService(s.repos.Banners)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Per-instance backstop; the Redis limiter guards individual routes.
	globalMax := s.config.GlobalRateLimit
	if globalMax <= 0 {
		globalMax = 100
	}
	app.Use(limiter.New(limiter.Config{
		Max:        globalMax,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// limit guards a route with a shared per-caller budget. Login and signup
// fail closed so brute force cannot ride out a Redis outage.
func (s *Server) limit(name string, n int, window time.Duration) fiber.Handler {
	policy := middleware.FailOpen
	if name == "login" || name == "signup" {
		policy = middleware.FailClosed
	}
	return s.limiter.Handler(middleware.Rule{Name: name, Limit: n, Window: window, Policy: policy})
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")
	auth := middleware.AuthRequired(s.config.JWTSecret, s.redis)

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "socialnet metrics",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", s.limit("signup", 5, 10*time.Minute), s.Signup)
	authGroup.Post("/login", s.limit("login", 10, 5*time.Minute), s.Login)
	authGroup.Post("/logout", auth, s.Logout)

	// Public browse
	api.Get("/banners", s.GetActiveBanners)
	api.Get("/topics/trending", s.GetTrendingTopics)
	api.Get("/topics/:name/posts", s.GetTopicPosts)

	publicPosts := api.Group("/posts")
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/search", s.limit("search", 20, time.Minute), s.SearchPosts)
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	// Websocket endpoint, ticket auth. Registered before the protected group
	// so the single-use ticket is consumed exactly once.
	api.Get("/ws", auth, s.WebsocketHandler())

	protected := api.Group("", auth)

	// WebSocket ticket issuance
	protected.Post("/ws/ticket", s.IssueWSTicket)
	protected.Get("/search/token", s.GetSearchToken)
	protected.Get("/feature-flags", s.GetMyFeatureFlags)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/search", s.SearchUsers)
	users.Get("/", s.GetAllUsers)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Post("/:id/promote-admin", s.AdminRequired(), s.PromoteToAdmin)
	users.Post("/:id/demote-admin", s.AdminRequired(), s.DemoteFromAdmin)
	users.Get("/:id", s.GetUserProfile)

	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	// Specific /requests routes before generic /:friendshipId
	friends.Post("/requests/:userId", s.limit("friend_request", 10, 5*time.Minute), s.SendFriendRequest)
	friends.Get("/requests", s.GetIncomingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Post("/requests/:requestId/accept", s.AcceptFriendRequest)
	friends.Post("/requests/:requestId/reject", s.RejectFriendRequest)
	friends.Delete("/requests/:requestId", s.CancelFriendRequest)
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	friends.Delete("/users/:userId", s.RemoveFriendByUser)
	friends.Delete("/:friendshipId", s.RemoveFriend)

	messages := protected.Group("/messages")
	messages.Post("/", s.limit("send_message", 30, time.Minute), s.SendMessage)
	messages.Get("/conversations", s.GetConversations)
	messages.Get("/inbox", s.GetInbox)
	messages.Get("/sent", s.GetSentMessages)
	messages.Get("/unread-count", s.GetUnreadMessageCount)
	messages.Get("/:userId", s.GetConversation)

	notificationsGroup := protected.Group("/notifications")
	notificationsGroup.Get("/", s.GetNotifications)
	notificationsGroup.Get("/unread-count", s.GetUnreadNotificationCount)
	notificationsGroup.Post("/read-all", s.MarkAllNotificationsRead)
	notificationsGroup.Post("/:id/read", s.MarkNotificationRead)

	posts := protected.Group("/posts")
	posts.Post("/", s.limit("create_post", 10, time.Minute), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/like", s.ToggleLike)
	posts.Post("/:id/comments", s.limit("create_comment", 20, time.Minute), s.CreateComment)
	posts.Put("/:id/comments/:commentId", s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/analytics/dashboard", s.GetAnalyticsDashboard)
	admin.Get("/analytics/users/:username", s.GetUserActivityReport)
	admin.Post("/analytics/refresh", s.RefreshAnalytics)
	admin.Get("/posts/search", s.AdminSearchPosts)
	admin.Get("/banners", s.ListBanners)
	admin.Post("/banners", s.CreateBanner)
	admin.Get("/banners/:id", s.GetBanner)
	admin.Put("/banners/:id", s.UpdateBanner)
	admin.Delete("/banners/:id", s.DeleteBanner)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": s.config.ServiceVersion,
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// optionalUserID reads the bearer token on public routes without enforcing it.
// Anonymous callers get 0.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	token := middleware.BearerToken(c)
	if token == "" {
		return 0
	}
	_, userID, err := middleware.ParseToken(token, s.config.JWTSecret)
	if err != nil {
		return 0
	}
	return userID
}

// errorHandler is the last line for errors handlers return instead of writing.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error", "error", err, "path", c.Path())
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "socialnet API",
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server and its background workers.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	if s.config.AnalyticsRefreshMinutes > 0 {
		interval := time.Duration(s.config.AnalyticsRefreshMinutes) * time.Minute
		go s.analyticsService.RunScheduler(s.shutdownCtx, interval)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop wiring and the scheduler
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
