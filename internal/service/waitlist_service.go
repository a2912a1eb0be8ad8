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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WaitlistService manages standby entries for slots that could not be
// booked. Promotion is always an explicit call, never a trigger.
type WaitlistService interface {
	// JoinWaitlist enqueues the user for a court and window
	JoinWaitlist(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error)

	// LeaveWaitlist removes the user's own entry
	LeaveWaitlist(ctx context.Context, entryID, userID string) error

	// PromoteEntry attempts to book the entry's slot for its user. On
	// success the entry is marked promoted; a conflict leaves it active.
	PromoteEntry(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error)

	// ExpireStaleEntries flips active entries past their deadline to
	// expired, returning how many flipped
	ExpireStaleEntries(ctx context.Context, limit int) (int, error)
}

// WaitlistServiceConfig contains policy settings for the waitlist
type WaitlistServiceConfig struct {
	EntryTTL time.Duration
}

type waitlistService struct {
	waitlistRepo repository.WaitlistRepository
	scheduleRepo repository.ScheduleRepository
	reservations ReservationService
	entryTTL     time.Duration
}

// NewWaitlistService creates a waitlist service
func NewWaitlistService(
	waitlistRepo repository.WaitlistRepository,
	scheduleRepo repository.ScheduleRepository,
	reservations ReservationService,
	cfg *WaitlistServiceConfig,
) WaitlistService {
	ttl := 7 * 24 * time.Hour
	if cfg != nil && cfg.EntryTTL > 0 {
		ttl = cfg.EntryTTL
	}
	return &waitlistService{
		waitlistRepo: waitlistRepo,
		scheduleRepo: scheduleRepo,
		reservations: reservations,
		entryTTL:     ttl,
	}
}

var _ WaitlistService = (*waitlistService)(nil)

// JoinWaitlist enqueues the user for a court and window
func (s *waitlistService) JoinWaitlist(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.waitlist.join")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, domain.ErrInvalidCourtID
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("court_id", req.CourtID),
	)

	window, err := domain.NewTimeWindow(req.StartTime, req.EndTime)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now().UTC()

	// A slot past its start is not worth waiting for
	expiresAt := now.Add(s.entryTTL)
	if window.Start.Before(expiresAt) {
		expiresAt = window.Start
	}

	entry := &domain.BookingWaitlist{
		ID:        uuid.New().String(),
		BranchID:  req.BranchID,
		CourtID:   req.CourtID,
		ServiceID: req.ServiceID,
		UserID:    userID,
		Window:    window,
		Priority:  req.Priority,
		Status:    domain.WaitlistStatusActive,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := entry.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.waitlistRepo.Create(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordWaitlistJoin(ctx, entry.BranchID)

	span.SetAttributes(attribute.String("entry_id", entry.ID))
	span.SetStatus(codes.Ok, "")
	return dto.WaitlistFromDomain(entry), nil
}

// LeaveWaitlist removes the user's own entry
func (s *waitlistService) LeaveWaitlist(ctx context.Context, entryID, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.waitlist.leave")
	defer span.End()

	span.SetAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("user_id", userID),
	)

	if entryID == "" || userID == "" {
		span.SetStatus(codes.Error, "invalid input")
		return domain.ErrWaitlistNotFound
	}

	if err := s.waitlistRepo.Remove(ctx, entryID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// PromoteEntry attempts to book the entry's slot for its user
func (s *waitlistService) PromoteEntry(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.waitlist.promote")
	defer span.End()

	span.SetAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("acting_user_id", actingUserID),
	)

	if entryID == "" {
		span.SetStatus(codes.Error, "invalid entry_id")
		return nil, domain.ErrWaitlistNotFound
	}

	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now().UTC()
	if err := entry.CanPromote(now); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	branch, err := s.scheduleRepo.GetBranch(ctx, entry.BranchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Book through the normal engine so every conflict and policy check
	// applies. A conflict bubbles up and the entry stays active.
	req := &dto.CreateBookingRequest{
		BranchID: entry.BranchID,
		Items: []dto.BookingItemRequest{{
			CourtID:   entry.CourtID,
			ServiceID: entry.ServiceID,
			StartTime: entry.Window.Start,
			EndTime:   entry.Window.End,
		}},
	}
	booking, err := s.reservations.CreateBooking(ctx, entry.UserID, branch.CompanyID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.waitlistRepo.MarkPromoted(ctx, entryID, booking.ID, now); err != nil {
		// The booking stands; the entry state is reconciled manually
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return booking, err
	}

	metrics.RecordWaitlistPromotion(ctx, entry.BranchID)

	span.AddEvent("waitlist_promoted", trace.WithAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("booking_id", booking.ID),
	))
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// ExpireStaleEntries flips active entries past their deadline to expired
func (s *waitlistService) ExpireStaleEntries(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.waitlist.expire_stale")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	span.SetAttributes(attribute.Int("limit", limit))

	count, err := s.waitlistRepo.ExpireStale(ctx, time.Now().UTC(), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("expired_count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}
