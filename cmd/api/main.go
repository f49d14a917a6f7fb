package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/campuspark/config"
	"github.com/jordanlanch/campuspark/pkg/api/handlers"
	"github.com/jordanlanch/campuspark/pkg/audit"
	"github.com/jordanlanch/campuspark/pkg/cache"
	"github.com/jordanlanch/campuspark/pkg/database"
	"github.com/jordanlanch/campuspark/pkg/export"
	"github.com/jordanlanch/campuspark/pkg/metrics"
	custommiddleware "github.com/jordanlanch/campuspark/pkg/middleware"
	"github.com/jordanlanch/campuspark/pkg/notify"
	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/jordanlanch/campuspark/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize in-process result cache
	resultCache := cache.NewMemory(time.Minute)
	defer resultCache.Close()

	// Initialize artifact storage
	var blobs storage.Provider
	switch cfg.StorageType {
	case "s3":
		blobs, err = storage.NewS3(storage.S3Config{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
		})
		if err != nil {
			log.Fatalf("❌ Failed to initialize S3 storage: %v", err)
		}
		log.Printf("✅ S3 storage initialized (bucket: %s)", cfg.S3Bucket)
	default:
		blobs, err = storage.NewLocal(cfg.StorageLocalPath)
		if err != nil {
			log.Fatalf("❌ Failed to initialize local storage: %v", err)
		}
		log.Printf("✅ Local storage initialized (path: %s)", cfg.StorageLocalPath)
	}

	// Initialize Redis job-event notifier (optional)
	var notifier notify.Notifier = notify.Nop{}
	if cfg.RedisURL != "" {
		redisNotifier, err := notify.NewRedisNotifier(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Failed to connect to Redis, job events disabled: %v", err)
		} else {
			notifier = redisNotifier
			defer redisNotifier.Close()
			log.Printf("✅ Redis notifier initialized")
		}
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Export timezone
	loc, err := time.LoadLocation(cfg.ExportTimezone)
	if err != nil {
		log.Printf("⚠️  Unknown timezone %q, falling back to UTC", cfg.ExportTimezone)
		loc = time.UTC
	}

	// Initialize services
	jobStore := export.NewPostgresStore(db.DB)
	auditService := audit.NewService(db.DB)
	exportService := export.NewService(jobStore, db, blobs, auditService, notifier, prometheusMetrics, export.Config{
		MaxWorkers: int64(cfg.ExportMaxWorkers),
		JobTimeout: cfg.ExportJobTimeout,
		Location:   loc,
	})
	reportsService := reports.NewService(db, resultCache, cfg.SummaryCacheTTL, prometheusMetrics)

	// Initialize handlers
	exportHandler := handlers.NewExportHandler(exportService)
	reportsHandler := handlers.NewReportsHandler(reportsService)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiter
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	// Prometheus metrics middleware
	e.Use(prometheusMetrics.Middleware())

	// CORS for the portal frontends
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{
			"http://localhost:5173",       // Development
			"https://portal.campuspark.io", // Production
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, "X-User-ID"},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Global rate limiting
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "CampusPark Reports API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes (identity comes from the upstream gateway header)
	v1 := e.Group("/api/v1")
	v1.Use(custommiddleware.RequireUser())

	v1.POST("/exports", exportHandler.Create)
	v1.GET("/exports", exportHandler.List)
	v1.GET("/exports/:id", exportHandler.Get)
	v1.GET("/exports/:id/download", exportHandler.Download)

	v1.GET("/reports/:type/summary", reportsHandler.Summary)
	v1.DELETE("/reports/cache", reportsHandler.InvalidateCache)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 CampusPark Reports API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("📦 Exports: %d workers, %s job timeout, timezone %s", cfg.ExportMaxWorkers, cfg.ExportJobTimeout, loc)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Let in-flight export pipelines reach a terminal state
	exportService.Wait()
	log.Println("✅ Export workers drained")

	// Gracefully shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
