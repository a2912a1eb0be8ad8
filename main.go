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

	"github.com/gin-gonic/gin"

	"github.com/courtbook/courtbook/internal/di"
	"github.com/courtbook/courtbook/internal/metrics"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/pkg/config"
	"github.com/courtbook/courtbook/pkg/database"
	"github.com/courtbook/courtbook/pkg/logger"
	"github.com/courtbook/courtbook/pkg/middleware"
	pkgredis "github.com/courtbook/courtbook/pkg/redis"
	"github.com/courtbook/courtbook/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting courtbook API...")

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed, continuing without tracing: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	// Initialize metric instruments
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		ConnectRetries:  3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Initialize Redis connection (idempotency records, health checks)
	redisCfg := &pkgredis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,

		ConnectRetries: 3,
		RetryInterval:  time.Second,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher
	eventPubCfg := &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.BookingTopic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	}
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, eventPubCfg)
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		eventPublisher = service.NewNoOpEventPublisher()
	} else {
		appLog.Info("Kafka event publisher connected")
	}
	defer eventPublisher.Close()

	// Initialize repositories
	bookingRepo := repository.NewPostgresBookingRepository(db.Pool())
	scheduleRepo := repository.NewPostgresScheduleRepository(db.Pool())
	waitlistRepo := repository.NewPostgresWaitlistRepository(db.Pool())

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		BookingRepo:    bookingRepo,
		ScheduleRepo:   scheduleRepo,
		WaitlistRepo:   waitlistRepo,
		EventPublisher: eventPublisher,
		ReservationCfg: &service.ReservationServiceConfig{
			PendingTTL:       cfg.Booking.PendingTTL,
			MaxActivePerUser: cfg.Booking.MaxActivePerUser,
			MaxAdvanceDays:   cfg.Booking.MaxAdvanceDays,
			SlotGranularity:  cfg.Booking.SlotGranularity,
			DefaultCurrency:  cfg.Booking.Currency,
		},
		LifecycleCfg: &service.LifecycleServiceConfig{
			CancellationCutoff: cfg.Booking.CancellationCutoff,
		},
		WaitlistCfg:   &service.WaitlistServiceConfig{},
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})

	// Setup Gin
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.App.Name))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// Payment provider webhooks verify their own signatures; no auth middleware
	router.POST("/webhooks/stripe", container.WebhookHandler.HandleStripeWebhook)

	authCfg := &middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	}

	idempotencyCfg := middleware.DefaultIdempotencyConfig(redisClient.Client())
	idempotencyCfg.SkipPaths = []string{"/health", "/ready"}

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		// Schedule reads are public within the tenant
		v1.GET("/branches/:id/availability", container.AvailabilityHandler.GetBranchAvailability)
		v1.GET("/courts/:id/rate", container.AvailabilityHandler.GetCourtRate)

		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(authCfg))
		{
			bookings.POST("", middleware.IdempotencyMiddleware(idempotencyCfg), container.BookingHandler.CreateBooking)
			bookings.POST("/:id/cancel", middleware.IdempotencyMiddleware(idempotencyCfg), container.BookingHandler.CancelBooking)
			bookings.GET("", container.BookingHandler.GetUserBookings)
			bookings.GET("/:id", container.BookingHandler.GetBooking)
		}

		waitlist := v1.Group("/waitlist")
		waitlist.Use(middleware.AuthMiddleware(authCfg))
		{
			waitlist.POST("", middleware.IdempotencyMiddleware(idempotencyCfg), container.WaitlistHandler.JoinWaitlist)
			waitlist.DELETE("/:id", container.WaitlistHandler.LeaveWaitlist)
			waitlist.POST("/:id/promote", middleware.RequireRole("admin", "staff"), container.WaitlistHandler.PromoteEntry)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(authCfg), middleware.RequireRole("admin"))
		{
			admin.POST("/expire-bookings", container.AdminHandler.ExpireBookings)
			admin.POST("/expire-waitlist", container.AdminHandler.ExpireWaitlist)
		}
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("courtbook API listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
