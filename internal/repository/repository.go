package repository

import (
	"context"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
)

// BookingRepository defines persistence for the booking aggregate.
// CreateBooking is the only write path that may claim court time: it
// performs the conflict check and the insert in one transaction.
type BookingRepository interface {
	// CreateBooking atomically re-checks every requested slot and commits
	// the booking with its items, participants and audit entry. Returns
	// domain.ErrSlotUnavailable or domain.ErrSlotBlocked when a slot was
	// taken between the availability read and the commit.
	CreateBooking(ctx context.Context, booking *domain.Booking) error

	// GetByID loads a booking with its items and participants
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByIdempotencyKey returns the prior booking for the key, or nil
	GetByIdempotencyKey(ctx context.Context, companyID, key string) (*domain.Booking, error)

	// ListByUser returns a user's bookings, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error)

	// ListByBranch returns bookings whose items touch the window
	ListByBranch(ctx context.Context, branchID string, window domain.TimeWindow, limit, offset int) ([]*domain.Booking, error)

	// ItemsInWindow returns slot-holding items overlapping the window,
	// for availability aggregation
	ItemsInWindow(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.BookingItem, error)

	// Confirm transitions pending -> confirmed, guarded on current status
	Confirm(ctx context.Context, id, paymentID string, at time.Time) error

	// Cancel transitions pending/confirmed -> cancelled, guarded on current status
	Cancel(ctx context.Context, id, byUserID, reason string, at time.Time) error

	// MarkExpired transitions pending -> expired, guarded on current status
	MarkExpired(ctx context.Context, id string, at time.Time) error

	// GetExpiredPending returns pending bookings whose hold deadline passed
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error)

	// CountActiveByUser counts a user's pending plus confirmed bookings in a branch
	CountActiveByUser(ctx context.Context, userID, branchID string) (int, error)

	// UpdatePaymentStatus records a payment state change, guarded by the
	// payment status machine
	UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, paymentID string) error

	// AppendChangeLog appends an audit entry
	AppendChangeLog(ctx context.Context, entry *domain.BookingChangeLog) error

	// ListChangeLogs returns a booking's audit trail, oldest first
	ListChangeLogs(ctx context.Context, bookingID string) ([]*domain.BookingChangeLog, error)
}

// ScheduleRepository defines read access to branch scheduling data:
// courts, opening hours, blocks and rate rules.
type ScheduleRepository interface {
	GetBranch(ctx context.Context, id string) (*domain.Branch, error)
	GetCourt(ctx context.Context, id string) (*domain.Court, error)

	// ListCourts returns all non-deleted courts of a branch
	ListCourts(ctx context.Context, branchID string) ([]*domain.Court, error)

	// GetBusinessHours returns the weekly schedule of a branch
	GetBusinessHours(ctx context.Context, branchID string) ([]*domain.BusinessHours, error)

	// GetSpecialHours returns the override for a calendar date, or nil
	GetSpecialHours(ctx context.Context, branchID string, date time.Time) (*domain.SpecialHours, error)

	// ListResourceBlocks returns active blocks overlapping the window
	ListResourceBlocks(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.ResourceBlock, error)

	// ListRateRules returns active rules valid on the window's day,
	// ordered branch-wide first, then court-specific, then created_at, id
	ListRateRules(ctx context.Context, branchID string, at time.Time) ([]*domain.RateRule, error)
}

// WaitlistRepository defines persistence for standby entries.
type WaitlistRepository interface {
	Create(ctx context.Context, entry *domain.BookingWaitlist) error
	GetByID(ctx context.Context, id string) (*domain.BookingWaitlist, error)

	// ListActiveBySlot returns active entries for the court whose windows
	// overlap, ordered by priority then created_at
	ListActiveBySlot(ctx context.Context, courtID string, window domain.TimeWindow) ([]*domain.BookingWaitlist, error)

	// MarkPromoted links the entry to the booking created for it, guarded
	// on active status
	MarkPromoted(ctx context.Context, id, bookingID string, at time.Time) error

	// ExpireStale flips active entries past their deadline to expired,
	// returning how many were flipped
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)

	// Remove soft-removes a user's own entry
	Remove(ctx context.Context, id, userID string) error
}
