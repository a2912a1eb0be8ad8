package service

import (
	"context"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/dto"
	"github.com/courtbook/courtbook/internal/metrics"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReservationService defines the booking creation and read surface
type ReservationService interface {
	// CreateBooking prices and atomically commits a new booking. Replays
	// of the same idempotency key return the previously created booking.
	CreateBooking(ctx context.Context, userID, companyID string, req *dto.CreateBookingRequest) (*dto.BookingResponse, error)

	// GetBooking retrieves a booking by ID, enforcing ownership
	GetBooking(ctx context.Context, bookingID, userID string) (*dto.BookingResponse, error)

	// GetUserBookings retrieves a user's bookings, newest first
	GetUserBookings(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedResponse, error)
}

// DiscountResolver is the port to the external promotion collaborator.
type DiscountResolver interface {
	// ResolveDiscount returns the discount amount for the promo code, or
	// zero when the code does not apply
	ResolveDiscount(ctx context.Context, userID, promoCode string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// NoDiscountResolver resolves every promo code to a zero discount
type NoDiscountResolver struct{}

// ResolveDiscount always returns zero
func (NoDiscountResolver) ResolveDiscount(ctx context.Context, userID, promoCode string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// ReservationServiceConfig contains policy settings for the reservation engine
type ReservationServiceConfig struct {
	PendingTTL       time.Duration
	MaxActivePerUser int
	MaxAdvanceDays   int
	SlotGranularity  time.Duration
	DefaultCurrency  string
}

type reservationService struct {
	bookingRepo      repository.BookingRepository
	availability     AvailabilityService
	rateResolver     RateResolver
	discountResolver DiscountResolver
	eventPublisher   EventPublisher
	pendingTTL       time.Duration
	maxActivePerUser int
	maxAdvanceDays   int
	slotGranularity  time.Duration
	defaultCurrency  string
}

// NewReservationService creates a reservation service
func NewReservationService(
	bookingRepo repository.BookingRepository,
	availability AvailabilityService,
	rateResolver RateResolver,
	discountResolver DiscountResolver,
	eventPublisher EventPublisher,
	cfg *ReservationServiceConfig,
) ReservationService {
	ttl := 15 * time.Minute
	maxActive := 10
	maxAdvance := 90
	granularity := 30 * time.Minute
	currency := "THB"
	if cfg != nil {
		if cfg.PendingTTL > 0 {
			ttl = cfg.PendingTTL
		}
		if cfg.MaxActivePerUser > 0 {
			maxActive = cfg.MaxActivePerUser
		}
		if cfg.MaxAdvanceDays > 0 {
			maxAdvance = cfg.MaxAdvanceDays
		}
		if cfg.SlotGranularity > 0 {
			granularity = cfg.SlotGranularity
		}
		if cfg.DefaultCurrency != "" {
			currency = cfg.DefaultCurrency
		}
	}
	if discountResolver == nil {
		discountResolver = NoDiscountResolver{}
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &reservationService{
		bookingRepo:      bookingRepo,
		availability:     availability,
		rateResolver:     rateResolver,
		discountResolver: discountResolver,
		eventPublisher:   eventPublisher,
		pendingTTL:       ttl,
		maxActivePerUser: maxActive,
		maxAdvanceDays:   maxAdvance,
		slotGranularity:  granularity,
		defaultCurrency:  currency,
	}
}

var _ ReservationService = (*reservationService)(nil)

// CreateBooking prices and atomically commits a new booking
func (s *reservationService) CreateBooking(ctx context.Context, userID, companyID string, req *dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.create")
	defer span.End()

	if req == nil || len(req.Items) == 0 {
		span.SetStatus(codes.Error, "no booking items")
		return nil, domain.ErrNoBookingItems
	}
	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if req.BranchID == "" {
		span.SetStatus(codes.Error, "invalid branch_id")
		return nil, domain.ErrInvalidBranchID
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("branch_id", req.BranchID),
		attribute.Int("items", len(req.Items)),
	)

	now := time.Now().UTC()
	windows, err := s.validateItems(req.Items, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Replay: a request retrying a key gets the booking the first attempt
	// committed, whatever state it has reached since.
	if req.IdempotencyKey != "" {
		existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, companyID, req.IdempotencyKey)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if existing != nil {
			span.AddEvent("idempotent_replay", trace.WithAttributes(
				attribute.String("booking_id", existing.ID),
			))
			span.SetStatus(codes.Ok, "")
			return dto.FromDomain(existing), nil
		}
	}

	activeCount, err := s.bookingRepo.CountActiveByUser(ctx, userID, req.BranchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if activeCount >= s.maxActivePerUser {
		span.SetStatus(codes.Error, "too many active bookings")
		metrics.RecordFailure(ctx, req.BranchID, "user_limit")
		return nil, domain.ErrTooManyActiveBookings
	}

	// Open-hours pre-check. Overlaps and blocks are advisory here; the
	// repository re-checks both inside the commit transaction.
	span.AddEvent("hours_check")
	coverage := windows[0]
	for _, w := range windows[1:] {
		if w.Start.Before(coverage.Start) {
			coverage.Start = w.Start
		}
		if w.End.After(coverage.End) {
			coverage.End = w.End
		}
	}
	snapshot, err := s.availability.GetBranchAvailability(ctx, req.BranchID, coverage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for _, w := range windows {
		if !snapshot.IsBranchOpen(w) {
			span.SetStatus(codes.Error, "branch closed")
			metrics.RecordFailure(ctx, req.BranchID, "branch_closed")
			return nil, domain.ErrBranchClosed
		}
	}

	booking, err := s.buildBooking(ctx, userID, companyID, req, windows, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.bookingRepo.CreateBooking(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if domain.IsConflictError(err) {
			metrics.RecordFailure(ctx, req.BranchID, "slot_conflict")
		}
		return nil, err
	}

	// Fire-and-forget: a publish failure never rolls back the booking
	_ = s.eventPublisher.PublishBookingCreated(ctx, booking)
	if booking.Status == domain.BookingStatusConfirmed {
		_ = s.eventPublisher.PublishBookingConfirmed(ctx, booking)
	}

	metrics.RecordBookingCreated(ctx, booking.BranchID, len(booking.Items), booking.Status == domain.BookingStatusPending)

	span.AddEvent("booking_created", trace.WithAttributes(
		attribute.String("booking_id", booking.ID),
		attribute.String("booking_number", booking.BookingNumber),
		attribute.String("status", string(booking.Status)),
		attribute.String("total_amount", booking.TotalAmount.String()),
	))
	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(booking), nil
}

// validateItems checks request shape and the booking horizon policy
func (s *reservationService) validateItems(items []dto.BookingItemRequest, now time.Time) ([]domain.TimeWindow, error) {
	granMinutes := int(s.slotGranularity / time.Minute)
	horizon := now.AddDate(0, 0, s.maxAdvanceDays)

	windows := make([]domain.TimeWindow, len(items))
	for i, item := range items {
		if item.CourtID == "" {
			return nil, domain.ErrInvalidCourtID
		}
		if item.ServiceID == "" {
			return nil, domain.ErrInvalidServiceID
		}
		w, err := domain.NewTimeWindow(item.StartTime, item.EndTime)
		if err != nil {
			return nil, err
		}
		mins, whole := w.DurationMinutes()
		if !whole || mins <= 0 || mins%granMinutes != 0 || int(domain.TimeOfDay(w.Start))%granMinutes != 0 {
			return nil, domain.ErrInvalidDuration
		}
		if w.Start.Before(now) {
			return nil, domain.ErrBookingInPast
		}
		if w.Start.After(horizon) {
			return nil, domain.ErrBookingTooFarAhead
		}
		windows[i] = w
	}
	return windows, nil
}

// buildBooking prices the items and assembles the aggregate
func (s *reservationService) buildBooking(
	ctx context.Context,
	userID, companyID string,
	req *dto.CreateBookingRequest,
	windows []domain.TimeWindow,
	now time.Time,
) (*domain.Booking, error) {
	bookingID := uuid.New().String()
	subtotal := decimal.Zero
	currency := s.defaultCurrency

	items := make([]*domain.BookingItem, len(req.Items))
	for i, itemReq := range req.Items {
		rate, err := s.rateResolver.ResolveRate(ctx, itemReq.CourtID, windows[i])
		if err != nil {
			return nil, err
		}
		mins, _ := windows[i].DurationMinutes()
		lineTotal := PriceForWindow(rate, windows[i])
		subtotal = subtotal.Add(lineTotal)

		item := &domain.BookingItem{
			ID:              uuid.New().String(),
			BookingID:       bookingID,
			CourtID:         itemReq.CourtID,
			ServiceID:       itemReq.ServiceID,
			Window:          windows[i],
			DurationMinutes: mins,
			UnitPrice:       rate,
			Subtotal:        lineTotal,
			Total:           lineTotal,
			CreatedAt:       now,
		}
		for _, p := range itemReq.Participants {
			participant := &domain.BookingParticipant{
				ID:            uuid.New().String(),
				BookingItemID: item.ID,
				GuestName:     p.GuestName,
				GuestEmail:    p.GuestEmail,
				GuestPhone:    p.GuestPhone,
				IsPrimary:     p.IsPrimary,
				CreatedAt:     now,
			}
			if p.UserID != "" {
				id := p.UserID
				participant.UserID = &id
			}
			item.Participants = append(item.Participants, participant)
		}
		items[i] = item
	}

	discount, err := s.discountResolver.ResolveDiscount(ctx, userID, req.PromoCode, subtotal)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.pendingTTL)
	booking := &domain.Booking{
		ID:             bookingID,
		BookingNumber:  domain.NewBookingNumber(now),
		CompanyID:      companyID,
		BranchID:       req.BranchID,
		UserID:         userID,
		Status:         domain.BookingStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      decimal.Zero,
		FeeAmount:      decimal.Zero,
		Currency:       currency,
		PromoCode:      req.PromoCode,
		IdempotencyKey: req.IdempotencyKey,
		Items:          items,
		ExpiresAt:      &expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := booking.RecomputeTotal(); err != nil {
		return nil, err
	}

	// Nothing to pay for: sponsor and zero-rate bookings confirm on the spot
	if booking.TotalAmount.IsZero() {
		booking.Status = domain.BookingStatusConfirmed
		booking.PaymentStatus = domain.PaymentStatusSucceeded
		booking.ConfirmedAt = &now
		booking.ExpiresAt = nil
	}

	if err := booking.Validate(); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking retrieves a booking by ID, enforcing ownership
func (s *reservationService) GetBooking(ctx context.Context, bookingID, userID string) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("user_id", userID),
	)

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}
	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !booking.BelongsToUser(userID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrBookingNotFound
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(booking), nil
}

// GetUserBookings retrieves a user's bookings, newest first
func (s *reservationService) GetUserBookings(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.list_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize
	bookings, err := s.bookingRepo.ListByUser(ctx, userID, pageSize+1, offset) // one extra to detect more pages
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	hasMore := len(bookings) > pageSize
	if hasMore {
		bookings = bookings[:pageSize]
	}

	responses := make([]*dto.BookingResponse, len(bookings))
	for i, b := range bookings {
		responses[i] = dto.FromDomain(b)
	}

	span.SetAttributes(attribute.Int("count", len(responses)))
	span.SetStatus(codes.Ok, "")
	return &dto.PaginatedResponse{
		Data:     responses,
		Page:     page,
		PageSize: pageSize,
		HasMore:  hasMore,
	}, nil
}
