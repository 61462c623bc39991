package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/juridico/conciliacao-api/docs" // Swagger docs
	"github.com/juridico/conciliacao-api/internal/config"
	"github.com/juridico/conciliacao-api/internal/database"
	"github.com/juridico/conciliacao-api/internal/handlers"
	"github.com/juridico/conciliacao-api/internal/jobs"
	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/middleware"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/services"
	"github.com/juridico/conciliacao-api/internal/storage"
	"github.com/juridico/conciliacao-api/pkg/logger"
)

// @title Conciliação API
// @version 1.0
// @description Obligations, installment splits, ledger synchronization and bank reconciliation

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment)

	// Sentry (GlitchTip) when a DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	locker, closeLocker := setupLocker(cfg)
	defer closeLocker()

	store, err := setupStorage(cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized document storage", "driver", cfg.Storage.Driver)

	repos := repository.NewRepositories(db)
	tx := repository.NewTransactor(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, tx, locker, store, worker, cfg)

	if err := svcs.Job.Schedule(
		time.Duration(cfg.SyncIntervalMinutes)*time.Minute,
		time.Duration(cfg.ConsistencyIntervalMinutes)*time.Minute,
	); err != nil {
		logger.Error("Failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	logger.Info("Scheduled recurring jobs")

	h := handlers.NewHandlers(svcs)
	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

// setupLocker uses Redis when configured so several API instances share locks
func setupLocker(cfg *config.Config) (lock.Locker, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("Using in-process locks")
		return lock.NewLocalLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("Using redis locks", "addr", cfg.RedisAddr)

	return lock.NewRedisLocker(client), func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", "error", err)
		}
	}
}

func setupStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Driver == "s3" {
		s3, err := storage.NewS3Storage(cfg.Storage)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s3.EnsureBucket(ctx, cfg.Storage.S3Region); err != nil {
			return nil, err
		}
		return s3, nil
	}
	return storage.NewLocalStorage(cfg.Storage.Path, cfg.Storage.PublicURL)
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	if cfg.Storage.Driver == "local" {
		files := router.Group(cfg.Storage.PublicURL)
		files.Use(middleware.Auth(cfg.JWTSecret))
		files.Static("/", cfg.Storage.Path)
	}

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.POST("/split", h.Split.Compute)

			obligations := protected.Group("/obligations")
			{
				obligations.GET("", h.Obligation.Index)
				obligations.POST("", h.Obligation.Create)
				obligations.GET("/:obligation_id", h.Obligation.Show)
				obligations.POST("/:obligation_id/sync", h.Obligation.Sync)
			}

			installments := protected.Group("/installments")
			{
				// Static route first so "pending_repasse" is not matched as :installment_id
				installments.GET("/pending_repasse", h.Installment.PendingRepasse)
				installments.GET("/:installment_id", h.Installment.Show)
				installments.GET("/:installment_id/split", h.Installment.Split)
				installments.POST("/:installment_id/payment", h.Installment.Pay)
				installments.POST("/:installment_id/cancel", h.Installment.Cancel)
				installments.POST("/:installment_id/sync", h.Installment.Sync)
				installments.POST("/:installment_id/repasse/declaration", h.Installment.Declaration)
				installments.POST("/:installment_id/repasse/transfer", h.Installment.TransferProof)
			}

			entries := protected.Group("/ledger_entries")
			{
				entries.GET("", h.Ledger.Index)
				entries.POST("", h.Ledger.Create)
				entries.GET("/:entry_id", h.Ledger.Show)
				entries.PATCH("/:entry_id", h.Ledger.Update)
				entries.POST("/:entry_id/confirm", h.Ledger.Confirm)
				entries.POST("/:entry_id/cancel", h.Ledger.Cancel)
				entries.POST("/:entry_id/reverse", h.Ledger.Reverse)
				entries.POST("/:entry_id/attachments", h.Ledger.AddAttachment)
			}

			protected.GET("/consistency", h.Consistency.Check)
			protected.POST("/consistency/repair", h.Consistency.Repair)

			transactions := protected.Group("/transactions")
			{
				transactions.POST("/import", h.Reconciliation.Import)
				transactions.GET("/pending", h.Reconciliation.Pending)
				transactions.POST("/auto_reconcile", h.Reconciliation.Auto)
				transactions.GET("/:transaction_id", h.Reconciliation.Show)
				transactions.GET("/:transaction_id/suggestions", h.Reconciliation.Suggestions)
				transactions.POST("/:transaction_id/reconcile", h.Reconciliation.Reconcile)
				transactions.POST("/:transaction_id/unreconcile", h.Reconciliation.Unreconcile)
				transactions.POST("/:transaction_id/ignore", h.Reconciliation.Ignore)
			}

			protected.POST("/documents", h.Document.Upload)

			alerts := protected.Group("/alerts")
			{
				alerts.GET("", h.Alert.Index)
				alerts.GET("/unread_count", h.Alert.UnreadCount)
				alerts.POST("/:alert_id/read", h.Alert.MarkAsRead)
			}

			protected.GET("/audits", h.Audit.Index)

			protected.GET("/jobs/status", h.Job.Status)
			protected.POST("/jobs/:name/run", h.Job.Trigger)
		}
	}

	return router
}
