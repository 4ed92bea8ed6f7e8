package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/Egham-7/repurpose-api/internal/api"
	"github.com/Egham-7/repurpose-api/internal/config"
	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"
	"github.com/Egham-7/repurpose-api/internal/services/backend"
	"github.com/Egham-7/repurpose-api/internal/services/database"
	"github.com/Egham-7/repurpose-api/internal/services/generations"
	"github.com/Egham-7/repurpose-api/internal/services/middleware"
	"github.com/Egham-7/repurpose-api/internal/services/orchestrator"
	"github.com/Egham-7/repurpose-api/internal/services/quota"
	"github.com/Egham-7/repurpose-api/internal/services/transcript"
	"github.com/Egham-7/repurpose-api/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

const (
	usageWorkerPoolSize   = 2
	usageWorkerBufferSize = 256
	sessionPurgeInterval  = time.Hour
	defaultRequestTimeout = 2 * time.Minute
)

// Server is a repurpose API server instance.
type Server struct {
	config *config.Config
	app    *fiber.App
	redis  *redis.Client
	db     *database.DB
}

type serverInfrastructure struct {
	redis *redis.Client
	db    *database.DB
}

type serverServices struct {
	auth         *auth.Service
	generations  *generations.Service
	usage        *usage.Service
	credits      *usage.CreditsService
	stripe       *usage.StripeService
	catalog      *models.PlanCatalog
	evaluator    *quota.Evaluator
	backend      backend.Backend
	orchestrator *orchestrator.Orchestrator
	rateLimiter  *usage.RateLimiter
	usageWorker  *usage.Worker
	purger       *auth.SessionPurgeScheduler
}

// close stops the background workers owned by the services.
func (s *serverServices) close() {
	s.purger.Stop()
	s.usageWorker.Stop()
	s.rateLimiter.Close()
}

// NewServer creates a new Server with the given configuration.
// The cfg parameter is required and must not be nil.
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}

	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	listenAddr := ":" + s.config.Server.Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Infrastructure Setup ===
	infra, err := initializeInfrastructure(s.config)
	if err != nil {
		return err
	}
	s.redis = infra.redis
	s.db = infra.db

	if s.redis != nil {
		defer func() {
			if err := s.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}
	defer func() {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	// === Services Initialization ===
	services, err := initializeServices(ctx, s.config, infra)
	if err != nil {
		return err
	}
	defer services.close()
	go services.purger.Start(ctx)

	s.app = createFiberApp(s.config)
	setupMiddleware(s.app, s.config)
	setupRoutes(s.app, s.config, infra, services)

	fmt.Printf("Repurpose API starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Generation backend: %s\n", services.backend.Name())
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	fiberlog.Info("Server shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "Repurpose API v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		ReadBufferSize:    8192,
		WriteBufferSize:   8192,
		CaseSensitive:     true,
		StrictRouting:     false,
		Network:           "tcp",
		ServerHeader:      "RepurposeAPI",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()
	requestsPerMin := cfg.Server.RequestsPerMin

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               requestsPerMin,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fmt.Sprintf("rate limit exceeded: %d requests per minute", requestsPerMin),
			})
		},
	}))

	// Bound every request; upstream calls inherit this through c.UserContext().
	app.Use(func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
		defer cancel()
		c.SetUserContext(ctx)

		return c.Next()
	})

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	allowedHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "User-Agent", "Stripe-Signature",
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     strings.Join(allowedHeaders, ", "),
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: cfg.Server.AllowedOrigins != "*",
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		fiberlog.Info("Redis not configured - circuit breaker disabled, rate limits kept in memory")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 20
	opt.MinIdleConns = 4
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3

	fiberlog.Debugf("Redis client configuration: PoolSize=%d, MinIdle=%d, MaxRetries=%d",
		opt.PoolSize, opt.MinIdleConns, opt.MaxRetries)

	return testRedisConnectionWithRetry(redis.NewClient(opt))
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func initializeInfrastructure(cfg *config.Config) (*serverInfrastructure, error) {
	infra := &serverInfrastructure{}

	redisClient, err := createRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}
	infra.redis = redisClient

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	infra.db = db
	fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

	if err := runDatabaseMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	fiberlog.Info("Database migrations completed successfully")

	return infra, nil
}

func runDatabaseMigrations(db *database.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Generation{},
		&models.Output{},
		&models.UsageLog{},
	)
}

func initializeServices(ctx context.Context, cfg *config.Config, infra *serverInfrastructure) (*serverServices, error) {
	gormDB := infra.db.DB

	genBackend, err := backend.New(ctx, cfg.Generation, infra.redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation backend: %w", err)
	}

	catalog := cfg.PlanCatalog()
	evaluator := quota.NewEvaluator(catalog)

	authSvc := auth.NewService(gormDB, cfg.SessionTTL(), cfg.Auth.BcryptCost)
	generationsSvc := generations.NewService(gormDB)
	usageSvc := usage.NewService(gormDB)
	creditsSvc := usage.NewCreditsService(gormDB)
	usageWorker := usage.NewWorker(usageSvc, usageWorkerPoolSize, usageWorkerBufferSize)

	orch := orchestrator.New(orchestrator.Options{
		Evaluator:      evaluator,
		Extractor:      transcript.New(cfg.Transcript),
		Backend:        genBackend,
		Generations:    generationsSvc,
		Credits:        creditsSvc,
		Recorder:       usageWorker,
		MaxConcurrency: cfg.Generation.MaxConcurrency,
	})

	stripeSvc := usage.NewStripeService(gormDB, cfg.Billing, catalog)
	if !stripeSvc.Enabled() {
		fiberlog.Info("Billing not configured - checkout returns demo links")
	}

	return &serverServices{
		auth:         authSvc,
		generations:  generationsSvc,
		usage:        usageSvc,
		credits:      creditsSvc,
		stripe:       stripeSvc,
		catalog:      catalog,
		evaluator:    evaluator,
		backend:      genBackend,
		orchestrator: orch,
		rateLimiter:  usage.NewRateLimiter(infra.redis),
		usageWorker:  usageWorker,
		purger:       auth.NewSessionPurgeScheduler(authSvc, sessionPurgeInterval),
	}, nil
}

func setupRoutes(app *fiber.App, cfg *config.Config, infra *serverInfrastructure, svc *serverServices) {
	authMiddleware := middleware.NewAuthMiddleware(svc.auth, &middleware.AuthMiddlewareConfig{
		CookieName:  cfg.Auth.CookieName,
		HeaderNames: []string{"Authorization"},
		SkipPaths:   []string{"/health", "/api/webhooks"},
	})

	healthHandler := api.NewHealthHandler(infra.db, infra.redis, svc.backend.Name())
	authHandler := api.NewAuthHandler(svc.auth, api.CookieSettings{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.SecureCookie(),
		TTL:    cfg.SessionTTL(),
	})
	generateHandler := api.NewGenerateHandler(svc.orchestrator)
	generationsHandler := api.NewGenerationsHandler(svc.generations, svc.orchestrator)
	statsHandler := api.NewStatsHandler(svc.generations, svc.usage, svc.evaluator, svc.catalog)
	plansHandler := api.NewPlansHandler(svc.catalog)
	stripeHandler := api.NewStripeHandler(svc.stripe)

	app.Get("/", welcomeHandler())
	app.Get("/health", healthHandler.HealthCheck)

	apiGroup := app.Group("/api")
	apiGroup.Get("/plans", plansHandler.List)
	apiGroup.Post("/webhooks/stripe", stripeHandler.HandleWebhook)

	authGroup := apiGroup.Group("/auth")
	authGroup.Post("/signup", authHandler.Signup)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authMiddleware.Authenticate(), authHandler.Logout)
	authGroup.Get("/me", authMiddleware.RequireAuth(), authHandler.Me)

	apiGroup.Post("/generate",
		authMiddleware.Authenticate(),
		middleware.GenerateRateLimit(svc.rateLimiter, cfg.Generation.RateLimitPerHour),
		generateHandler.Generate,
	)
	apiGroup.Get("/generations", authMiddleware.RequireAuth(), generationsHandler.List)
	apiGroup.Post("/generations/:id/retry",
		authMiddleware.RequireAuth(),
		middleware.GenerateRateLimit(svc.rateLimiter, cfg.Generation.RateLimitPerHour),
		generationsHandler.Retry,
	)
	apiGroup.Get("/user/stats", authMiddleware.RequireAuth(), statsHandler.GetStats)
	apiGroup.Post("/checkout", authMiddleware.RequireAuth(), stripeHandler.CreateCheckoutSession)
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Repurpose API",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"generate":    "/api/generate",
				"generations": "/api/generations",
				"stats":       "/api/user/stats",
				"plans":       "/api/plans",
				"health":      "/health",
			},
		})
	}
}
