package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"quiz-forge/internal/adapter"
	"quiz-forge/internal/adapter/billing"
	"quiz-forge/internal/adapter/chunks"
	"quiz-forge/internal/adapter/quizgen"
	"quiz-forge/internal/adapter/ratelimit"
	"quiz-forge/internal/cache"
	"quiz-forge/internal/config"
	"quiz-forge/internal/database"
	"quiz-forge/internal/handler"
	"quiz-forge/internal/logger"
	"quiz-forge/internal/middleware"
	"quiz-forge/internal/repository"
	"quiz-forge/internal/service"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	// Configure the LLM client used for question generation
	ollamaHTTPClient := &http.Client{Timeout: cfg.LLM.Timeout}
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.ServerURL),
		ollama.WithModel(cfg.LLM.Model),
		ollama.WithHTTPClient(ollamaHTTPClient),
	)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// Connect to database
	db, err := database.NewSQLXOracleDB(cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	jobRepository := repository.NewJobDatabaseAdapter(db)
	quizRepository := repository.NewQuizDatabaseAdapter(db)
	documentRepository := repository.NewDocumentDatabaseAdapter(db)

	// Initialize Redis client and cache adapter
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	appLogger.Info("Successfully connected to Redis")
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)

	// Initialize adapters
	rateLimiter := ratelimit.NewRedisRateLimiter(cacheAdapter, cfg.RateLimit, appLogger)
	billingService := billing.NewNoopBillingService(appLogger)
	questionGenerator := quizgen.NewLLMQuestionGenerator(llm, cfg.LLM.Timeout)
	chunkProvider := chunks.NewDocumentChunkProvider(documentRepository, cfg.Generator.ChunkSize)

	// Initialize services
	dispatchQueue := service.NewDispatchQueue(cfg.Generator.DispatchQueueSize)
	jobService := service.NewJobService(jobRepository, documentRepository, rateLimiter, billingService, dispatchQueue, cfg, appLogger)
	progressTracker := service.NewProgressTracker(jobRepository, appLogger)
	assembler := service.NewConsolidationAssembler(appLogger)

	orchestrator := service.NewChunkOrchestrator(
		jobService,
		progressTracker,
		assembler,
		jobRepository,
		quizRepository,
		chunkProvider,
		questionGenerator,
		dispatchQueue,
		cfg,
		appLogger,
	)
	reaper := service.NewStaleJobReaper(jobService, jobRepository, cfg, appLogger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	orchestrator.Start(workerCtx)
	reaper.Start(workerCtx)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService)
	healthHandler := handler.NewHealthHandler(db, cacheAdapter)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,PUT,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept,Authorization", MaxAge: 300}))
	app.Use(recover.New())

	// Operational endpoints
	app.Get("/healthz", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Job routes (all protected)
	apiGroup := app.Group("/api")
	jobGroup := apiGroup.Group("/jobs", middleware.Protected(cfg.Auth.JWTSecret))
	jobGroup.Post("/", jobHandler.CreateJob)
	jobGroup.Get("/", jobHandler.ListJobs)
	jobGroup.Get("/stats", jobHandler.GetStatistics)
	jobGroup.Get("/:id", jobHandler.GetJob)
	jobGroup.Delete("/:id", jobHandler.CancelJob)

	// Start server
	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", os.Getenv("ENV")))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop background workers after the HTTP surface is closed so no new
	// jobs can be enqueued while they drain.
	stopWorkers()
	dispatchQueue.Close()
	orchestrator.Wait()
	reaper.Wait()

	appLogger.Info("Server exited gracefully")
}
