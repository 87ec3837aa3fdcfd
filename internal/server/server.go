// Package server contains the HTTP handlers and routing of the Alvacus API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "alvacus/docs" // swagger docs
	"alvacus/internal/auth"
	"alvacus/internal/bootstrap"
	"alvacus/internal/config"
	"alvacus/internal/database"
	"alvacus/internal/mailer"
	"alvacus/internal/middleware"
	"alvacus/internal/models"
	"alvacus/internal/notifications"
	"alvacus/internal/repository"
	"alvacus/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const version = "1.0.0"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus

	tokens   *auth.TokenIssuer
	denylist auth.Denylist
	userRepo repository.UserRepository

	authService       *service.AuthService
	userService       *service.UserService
	calculatorService *service.CalculatorService
	commentService    *service.CommentService
	moderationService *service.ModerationService
}

// NewServer initializes the runtime described by cfg and builds a Server on
// top of it. Built-in calculators are upserted outside production.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedFixtures: !cfg.IsProduction()})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb, mailer.New(cfg))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB and Redis.
// A nil Redis client disables the denylist, the shared limiter and
// notification fan-out.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, mail mailer.Mailer) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}
	if expose := !cfg.IsProduction(); models.ExposeErrorDetails != expose {
		models.ExposeErrorDetails = expose
	}

	userRepo := repository.NewUserRepository(db)
	calcRepo := repository.NewCalculatorRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	contactRepo := repository.NewContactRepository(db)

	tokens := auth.NewTokenIssuer(auth.TokenConfigFrom(cfg))
	notifier := notifications.NewNotifier(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("alvacus-api"),
		tokens:         tokens,
		denylist:       auth.NewDenylist(redisClient),
		userRepo:       userRepo,
	}

	s.authService = service.NewAuthService(userRepo, tokens, mail, service.AuthConfig{
		ClientURL:      cfg.ClientURL,
		GoogleClientID: cfg.GoogleClientID,
	})
	s.userService = service.NewUserService(service.UserServiceDeps{
		Users:         userRepo,
		Follows:       followRepo,
		Notifications: notifRepo,
		Comments:      commentRepo,
		Tokens:        tokens,
		Sessions:      s.authService,
		Mailer:        mail,
		Publisher:     notifier,
		ClientURL:     cfg.ClientURL,
	})
	s.calculatorService = service.NewCalculatorService(calcRepo, userRepo, notifier)
	s.commentService = service.NewCommentService(commentRepo, calcRepo, notifier)
	s.moderationService = service.NewModerationService(reportRepo, contactRepo, userRepo, mail, cfg.AdminEmail)

	return s, nil
}

// App builds the Fiber application with middleware and routes. It is
// built once and reused.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Alvacus API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler renders errors that escaped a handler, including panics
// caught by recover and fiber's own routing errors.
func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		if fe.Code == fiber.StatusNotFound {
			return models.RespondWithError(c, fe.Code, models.NewNotFoundError("Route", c.Path()).WithMessage(routeNotFoundMessage))
		}
		return models.RespondWithError(c, fe.Code, fe)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithAppError(c, models.NewInternalError(err))
}

const routeNotFoundMessage = "Could not find this route."

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so 429 responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.RateLimitExempt()
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

// authLimiter guards credential and submission endpoints.
func (s *Server) authLimiter(name string) fiber.Handler {
	limit := s.config.AuthRateLimit
	if limit <= 0 {
		limit = 5
	}
	window := s.config.AuthRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return middleware.RateLimit(s.redis, limit, window, s.config.RateLimitExempt(), name)
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", s.Welcome)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", s.authLimiter("login"), s.Login)
	authGroup.Post("/access", s.authLimiter("access"), s.AccessLogin)
	authGroup.Post("/googleLogin", s.authLimiter("google_login"), s.GoogleLogin)
	authGroup.Post("/register", s.authLimiter("register"), s.Register)
	authGroup.Get("/refresh", s.SessionRequired(), s.Refresh)
	authGroup.Post("/logout", s.Logout)
	authGroup.Post("/forgot-password", s.authLimiter("forgot_password"), s.ForgotPassword)
	authGroup.Put("/reset-password", s.authLimiter("reset_password"), s.ResetPassword)
	authGroup.Get("/me", s.BearerRequired(), s.Me)

	// Static segments are registered before /:userId.
	users := api.Group("/user")
	users.Get("/", s.AuthRequired(), s.ListUsers)
	users.Get("/notifications", s.AuthRequired(), s.GetNotifications)
	users.Put("/notifications/read", s.AuthRequired(), s.MarkNotificationsRead)
	users.Put("/edit/:userId", s.AuthRequired(), s.UpdateProfile)
	users.Put("/change-password/:userId", s.AuthRequired(), s.ChangePassword)
	users.Put("/change-privacy/:userId", s.AuthRequired(), s.ChangePrivacy)
	users.Post("/activation/resend", s.AuthRequired(), s.ResendActivation)
	users.Put("/activation/:t", s.Activate)
	users.Delete("/delete/:userId", s.AuthRequired(), s.DeleteUser)
	users.Get("/:userId/comments", s.OptionalAuth(), s.GetUserActivity)
	users.Post("/:userId/follow", s.AuthRequired(), s.Follow)
	users.Post("/:userId/unfollow", s.AuthRequired(), s.Unfollow)
	users.Get("/:userId", s.GetUserProfile)

	calcs := api.Group("/calculators")
	calcs.Get("/", s.GetVerifiedCalculators)
	calcs.Get("/all", s.ListCalculators)
	calcs.Get("/modular", s.GetModularCalculators)
	calcs.Get("/unverified", s.AuthRequired(), s.AdminRequired(), s.ListUnverifiedCalculators)
	calcs.Get("/monolithic/:slug", s.GetCalculatorBySlug)
	calcs.Post("/create", s.AuthRequired(), s.CreateCalculator)
	calcs.Patch("/edit/:calcId", s.AuthRequired(), s.UpdateCalculator)
	calcs.Delete("/delete/:calcId", s.AuthRequired(), s.DeleteCalculator)
	calcs.Patch("/verify/:calcId", s.AuthRequired(), s.AdminRequired(), s.VerifyCalculator)

	comments := calcs.Group("/comments")
	comments.Post("/:commentId/reply", s.AuthRequired(), s.ReplyToComment)
	comments.Delete("/:commentId/delete", s.AuthRequired(), s.DeleteComment)
	comments.Delete("/:commentId/replies/:replyId/delete", s.AuthRequired(), s.DeleteReply)
	comments.Post("/:commentId/like", s.AuthRequired(), s.LikeComment)
	comments.Post("/:commentId/unlike", s.AuthRequired(), s.UnlikeComment)

	calcs.Get("/:userId/saved", s.OptionalAuth(), s.ListSavedCalculators)
	calcs.Get("/:userId/my-calculators", s.ListAuthoredCalculators)
	calcs.Post("/:calcId/evaluate", s.EvaluateCalculator)
	calcs.Post("/:calcId/comments", s.AuthRequired(), s.CreateComment)
	calcs.Get("/:calcId/comments", s.ListComments)
	calcs.Post("/:calcId/:userId/save", s.AuthRequired(), s.SaveCalculator)
	calcs.Post("/:calcId/:userId/unSave", s.AuthRequired(), s.UnsaveCalculator)
	calcs.Get("/:id", s.GetCalculator)

	reports := api.Group("/report")
	reports.Get("/", s.AuthRequired(), s.AdminRequired(), s.listReports(true))
	reports.Get("/unseen", s.AuthRequired(), s.AdminRequired(), s.listReports(false))
	reports.Post("/submit", s.authLimiter("report"), s.SubmitReport)
	reports.Post("/comment-report", s.authLimiter("comment_report"), s.SubmitCommentReport)
	reports.Patch("/update/:reportId", s.AuthRequired(), s.AdminRequired(), s.UpdateReport)
	reports.Delete("/:reportId", s.AuthRequired(), s.AdminRequired(), s.DeleteReport)

	contacts := api.Group("/contact")
	contacts.Get("/", s.AuthRequired(), s.AdminRequired(), s.listContacts(true))
	contacts.Get("/unseen", s.AuthRequired(), s.AdminRequired(), s.listContacts(false))
	contacts.Post("/", s.authLimiter("contact"), s.SubmitContact)
	contacts.Patch("/update/:contactId", s.AuthRequired(), s.AdminRequired(), s.UpdateContact)
	contacts.Delete("/:id", s.AuthRequired(), s.AdminRequired(), s.DeleteContact)

	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Route", c.Path()).WithMessage(routeNotFoundMessage))
	})
}

// Welcome handles GET /
func (s *Server) Welcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Welcome to the Alvacus"})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis answer. Redis is
// optional: without it the API runs on its in-process fallbacks.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": version,
		"status":  overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start serves the API until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
