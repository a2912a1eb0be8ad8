package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtbook/courtbook/internal/di"
	"github.com/courtbook/courtbook/internal/metrics"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/internal/worker"
	"github.com/courtbook/courtbook/pkg/config"
	"github.com/courtbook/courtbook/pkg/database"
	"github.com/courtbook/courtbook/pkg/logger"
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
		ServiceName: "expiry-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting expiry worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "expiry-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed, continuing without tracing: %v", err))
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      int32(cfg.Database.MaxOpenConns),
		MinConns:      int32(cfg.Database.MaxIdleConns),
		ConnectRetries: 3,
		RetryInterval:  2 * time.Second,
		EnableTracing: cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Initialize Kafka event publisher for expiry events
	var eventPublisher service.EventPublisher
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.BookingTopic,
		ServiceName: "expiry-worker",
		ClientID:    "expiry-worker",
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		eventPublisher = service.NewNoOpEventPublisher()
	}
	defer eventPublisher.Close()

	// Build services; the worker only needs the lifecycle and waitlist sides
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		BookingRepo:    repository.NewPostgresBookingRepository(db.Pool()),
		ScheduleRepo:   repository.NewPostgresScheduleRepository(db.Pool()),
		WaitlistRepo:   repository.NewPostgresWaitlistRepository(db.Pool()),
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
	})

	// Start the sweep loop
	expiryWorker := worker.NewExpiryWorker(
		container.LifecycleService,
		container.WaitlistService,
		worker.DefaultExpiryWorkerConfig(),
	)
	if err := expiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down expiry worker...")
	expiryWorker.Stop()
	cancel()
	appLog.Info("Expiry worker exited")
}
