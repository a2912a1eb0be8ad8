package service

import (
	"context"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/dto"
	"github.com/courtbook/courtbook/internal/metrics"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/pkg/logger"
	"github.com/courtbook/courtbook/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LifecycleService drives booking state transitions after creation:
// cancellation, payment callbacks and expiry.
type LifecycleService interface {
	// CancelBooking cancels a pending or confirmed booking. Confirmed
	// bookings must be cancelled before the cutoff ahead of their first
	// slot. No refund is initiated and no waitlist entry is promoted.
	CancelBooking(ctx context.Context, bookingID, actingUserID, reason string) (*dto.BookingResponse, error)

	// HandlePaymentCallback applies a payment provider's verdict: success
	// confirms the pending booking, failure releases nothing but records
	// the failed payment.
	HandlePaymentCallback(ctx context.Context, bookingID, paymentID string, succeeded bool) error

	// ExpirePendingBookings flips pending bookings past their hold
	// deadline to expired, freeing their slots. Returns how many flipped.
	ExpirePendingBookings(ctx context.Context, limit int) (int, error)
}

// LifecycleServiceConfig contains policy settings for lifecycle transitions
type LifecycleServiceConfig struct {
	CancellationCutoff time.Duration
}

type lifecycleService struct {
	bookingRepo        repository.BookingRepository
	eventPublisher     EventPublisher
	cancellationCutoff time.Duration
}

// NewLifecycleService creates a lifecycle service
func NewLifecycleService(
	bookingRepo repository.BookingRepository,
	eventPublisher EventPublisher,
	cfg *LifecycleServiceConfig,
) LifecycleService {
	cutoff := 2 * time.Hour
	if cfg != nil && cfg.CancellationCutoff > 0 {
		cutoff = cfg.CancellationCutoff
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &lifecycleService{
		bookingRepo:        bookingRepo,
		eventPublisher:     eventPublisher,
		cancellationCutoff: cutoff,
	}
}

var _ LifecycleService = (*lifecycleService)(nil)

// CancelBooking cancels a pending or confirmed booking
func (s *lifecycleService) CancelBooking(ctx context.Context, bookingID, actingUserID, reason string) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.lifecycle.cancel")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("user_id", actingUserID),
	)

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}
	if actingUserID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !booking.BelongsToUser(actingUserID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrBookingNotFound
	}

	now := time.Now().UTC()
	if booking.Status == domain.BookingStatusConfirmed {
		if earliest, ok := earliestStart(booking); ok && now.After(earliest.Add(-s.cancellationCutoff)) {
			span.SetStatus(codes.Error, "cancellation cutoff passed")
			return nil, domain.ErrCancellationTooLate
		}
	}

	wasPending := booking.Status == domain.BookingStatusPending

	// The conditional UPDATE is the real guard; a concurrent transition
	// between the read above and here surfaces as a classified error.
	if err := s.bookingRepo.Cancel(ctx, bookingID, actingUserID, reason, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	prevStatus := booking.Status
	if cancelErr := booking.Cancel(actingUserID, reason, now); cancelErr != nil {
		// The row already transitioned; keep the snapshot consistent
		booking.Status = domain.BookingStatusCancelled
		booking.CancelledAt = &now
		booking.CancelledBy = actingUserID
		booking.CancelReason = reason
	}

	s.appendLog(ctx, domain.NewChangeLog(
		bookingID, domain.ChangeTypeCancelled,
		prevStatus.String(), domain.BookingStatusCancelled.String(),
		reason, actingUserID, now,
	))

	go func() {
		if pubErr := s.eventPublisher.PublishBookingCancelled(context.Background(), booking); pubErr != nil {
			logger.Get().Warn("failed to publish booking cancelled event",
				zap.String("booking_id", bookingID),
				zap.Error(pubErr),
			)
		}
	}()

	metrics.RecordCancellation(ctx, booking.BranchID, wasPending)

	span.AddEvent("booking_cancelled", trace.WithAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("previous_status", prevStatus.String()),
	))
	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(booking), nil
}

// HandlePaymentCallback applies a payment provider's verdict
func (s *lifecycleService) HandlePaymentCallback(ctx context.Context, bookingID, paymentID string, succeeded bool) error {
	ctx, span := telemetry.StartSpan(ctx, "service.lifecycle.payment_callback")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("payment_id", paymentID),
		attribute.Bool("succeeded", succeeded),
	)

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return domain.ErrInvalidBookingID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	target := domain.PaymentStatusFailed
	if succeeded {
		target = domain.PaymentStatusSucceeded
	}
	if !booking.PaymentStatus.CanTransitionTo(target) {
		span.SetStatus(codes.Error, "payment transition not allowed")
		return domain.ErrInvalidPaymentStatus
	}

	now := time.Now().UTC()

	if !succeeded {
		if err := s.bookingRepo.UpdatePaymentStatus(ctx, bookingID, booking.PaymentStatus, target, paymentID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		s.appendLog(ctx, domain.NewChangeLog(
			bookingID, domain.ChangeTypePaymentUpdate,
			booking.PaymentStatus.String(), target.String(),
			"", "", now,
		))
		span.SetStatus(codes.Ok, "")
		return nil
	}

	// Confirm flips status, payment_status and the hold deadline in one
	// guarded UPDATE.
	if err := s.bookingRepo.Confirm(ctx, bookingID, paymentID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.appendLog(ctx, domain.NewChangeLog(
		bookingID, domain.ChangeTypeConfirmed,
		domain.BookingStatusPending.String(), domain.BookingStatusConfirmed.String(),
		"", "", now,
	))

	booking.Status = domain.BookingStatusConfirmed
	booking.PaymentStatus = domain.PaymentStatusSucceeded
	booking.PaymentID = paymentID
	booking.ConfirmedAt = &now
	booking.ExpiresAt = nil

	go func() {
		if pubErr := s.eventPublisher.PublishBookingConfirmed(context.Background(), booking); pubErr != nil {
			logger.Get().Warn("failed to publish booking confirmed event",
				zap.String("booking_id", bookingID),
				zap.Error(pubErr),
			)
		}
	}()

	metrics.RecordConfirmation(ctx, booking.BranchID, now.Sub(booking.CreatedAt).Seconds())

	span.AddEvent("booking_confirmed", trace.WithAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("payment_id", paymentID),
	))
	span.SetStatus(codes.Ok, "")
	return nil
}

// ExpirePendingBookings flips stale pending bookings to expired
func (s *lifecycleService) ExpirePendingBookings(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.lifecycle.expire_pending")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	span.SetAttributes(attribute.Int("limit", limit))

	now := time.Now().UTC()
	bookings, err := s.bookingRepo.GetExpiredPending(ctx, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	expired := 0
	for _, booking := range bookings {
		if err := s.bookingRepo.MarkExpired(ctx, booking.ID, now); err != nil {
			// Lost the race to a confirm or cancel; skip it
			logger.Get().Debug("skipping booking during expiry",
				zap.String("booking_id", booking.ID),
				zap.Error(err),
			)
			continue
		}

		s.appendLog(ctx, domain.NewChangeLog(
			booking.ID, domain.ChangeTypeExpired,
			domain.BookingStatusPending.String(), domain.BookingStatusExpired.String(),
			"hold deadline passed", "", now,
		))

		booking.Status = domain.BookingStatusExpired
		go func(b *domain.Booking) {
			if pubErr := s.eventPublisher.PublishBookingExpired(context.Background(), b); pubErr != nil {
				logger.Get().Warn("failed to publish booking expired event",
					zap.String("booking_id", b.ID),
					zap.Error(pubErr),
				)
			}
		}(booking)

		expired++
	}

	if expired > 0 {
		metrics.RecordExpiration(ctx, int64(expired))
	}

	span.SetAttributes(attribute.Int("expired_count", expired))
	span.SetStatus(codes.Ok, "")
	return expired, nil
}

// appendLog writes an audit entry, logging instead of failing the caller
func (s *lifecycleService) appendLog(ctx context.Context, entry *domain.BookingChangeLog) {
	if err := s.bookingRepo.AppendChangeLog(ctx, entry); err != nil {
		logger.Get().Warn("failed to append booking change log",
			zap.String("booking_id", entry.BookingID),
			zap.String("change_type", string(entry.ChangeType)),
			zap.Error(err),
		)
	}
}

// earliestStart returns the start of the booking's first slot
func earliestStart(b *domain.Booking) (time.Time, bool) {
	if len(b.Items) == 0 {
		return time.Time{}, false
	}
	earliest := b.Items[0].Window.Start
	for _, item := range b.Items[1:] {
		if item.Window.Start.Before(earliest) {
			earliest = item.Window.Start
		}
	}
	return earliest, true
}
