package di

import (
	"github.com/courtbook/courtbook/internal/handler"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/pkg/database"
	"github.com/courtbook/courtbook/pkg/redis"
)

// Container holds all dependencies for the courtbook service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	BookingRepo  repository.BookingRepository
	ScheduleRepo repository.ScheduleRepository
	WaitlistRepo repository.WaitlistRepository

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	RateResolver        service.RateResolver
	AvailabilityService service.AvailabilityService
	ReservationService  service.ReservationService
	LifecycleService    service.LifecycleService
	WaitlistService     service.WaitlistService

	// Handlers
	HealthHandler       *handler.HealthHandler
	BookingHandler      *handler.BookingHandler
	AvailabilityHandler *handler.AvailabilityHandler
	WaitlistHandler     *handler.WaitlistHandler
	WebhookHandler      *handler.WebhookHandler
	AdminHandler        *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB               *database.PostgresDB
	Redis            *redis.Client
	BookingRepo      repository.BookingRepository
	ScheduleRepo     repository.ScheduleRepository
	WaitlistRepo     repository.WaitlistRepository
	EventPublisher   service.EventPublisher
	DiscountResolver service.DiscountResolver
	ReservationCfg   *service.ReservationServiceConfig
	LifecycleCfg     *service.LifecycleServiceConfig
	WaitlistCfg      *service.WaitlistServiceConfig
	WebhookSecret    string
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		BookingRepo:    cfg.BookingRepo,
		ScheduleRepo:   cfg.ScheduleRepo,
		WaitlistRepo:   cfg.WaitlistRepo,
		EventPublisher: cfg.EventPublisher,
	}

	// Initialize services
	c.RateResolver = service.NewRateResolver(c.ScheduleRepo)
	c.AvailabilityService = service.NewAvailabilityService(c.BookingRepo, c.ScheduleRepo)
	c.ReservationService = service.NewReservationService(
		c.BookingRepo,
		c.AvailabilityService,
		c.RateResolver,
		cfg.DiscountResolver,
		c.EventPublisher,
		cfg.ReservationCfg,
	)
	c.LifecycleService = service.NewLifecycleService(
		c.BookingRepo,
		c.EventPublisher,
		cfg.LifecycleCfg,
	)
	c.WaitlistService = service.NewWaitlistService(
		c.WaitlistRepo,
		c.ScheduleRepo,
		c.ReservationService,
		cfg.WaitlistCfg,
	)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.BookingHandler = handler.NewBookingHandler(c.ReservationService, c.LifecycleService)
	c.AvailabilityHandler = handler.NewAvailabilityHandler(c.AvailabilityService, c.RateResolver)
	c.WaitlistHandler = handler.NewWaitlistHandler(c.WaitlistService)
	c.WebhookHandler = handler.NewWebhookHandler(c.LifecycleService, cfg.WebhookSecret)
	c.AdminHandler = handler.NewAdminHandler(c.LifecycleService, c.WaitlistService)

	return c
}
