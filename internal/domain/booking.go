package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
	BookingStatusExpired   BookingStatus = "expired"
)

// IsValid checks if the status is a valid BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled,
		BookingStatusCompleted, BookingStatusNoShow, BookingStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of BookingStatus
func (s BookingStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is defined out of the status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow, BookingStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether the booking status machine allows s → next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled || next == BookingStatusExpired
	case BookingStatusConfirmed:
		return next == BookingStatusCancelled || next == BookingStatusCompleted || next == BookingStatusNoShow
	}
	return false
}

// PaymentStatus represents the payment lifecycle, independent of BookingStatus
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSucceeded,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded,
		PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the payment status machine allows s → next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusProcessing || next == PaymentStatusSucceeded ||
			next == PaymentStatusFailed || next == PaymentStatusCancelled
	case PaymentStatusProcessing:
		return next == PaymentStatusSucceeded || next == PaymentStatusFailed || next == PaymentStatusCancelled
	case PaymentStatusSucceeded:
		return next == PaymentStatusRefunded || next == PaymentStatusPartiallyRefunded
	}
	return false
}

// Booking is the reservation aggregate root. It is created atomically with
// at least one BookingItem and mutated only through defined transitions.
type Booking struct {
	ID             string          `json:"id"`
	BookingNumber  string          `json:"booking_number"`
	CompanyID      string          `json:"company_id"`
	BranchID       string          `json:"branch_id"`
	UserID         string          `json:"user_id"`
	Status         BookingStatus   `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	PromoCode      string          `json:"promo_code,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Items          []*BookingItem  `json:"items"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy    string          `json:"cancelled_by,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// BookingItem is one court-and-service reservation line within a booking.
// Immutable once the parent booking is committed.
type BookingItem struct {
	ID              string                `json:"id"`
	BookingID       string                `json:"booking_id"`
	CourtID         string                `json:"court_id"`
	ServiceID       string                `json:"service_id"`
	Window          TimeWindow            `json:"window"`
	DurationMinutes int                   `json:"duration_minutes"`
	UnitPrice       decimal.Decimal       `json:"unit_price"` // per hour
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Total           decimal.Decimal       `json:"total"`
	Participants    []*BookingParticipant `json:"participants,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// BookingParticipant is a named player on a booking item: either a platform
// user (UserID set) or a free-text guest.
type BookingParticipant struct {
	ID            string    `json:"id"`
	BookingItemID string    `json:"booking_item_id"`
	UserID        *string   `json:"user_id,omitempty"`
	GuestName     string    `json:"guest_name,omitempty"`
	GuestEmail    string    `json:"guest_email,omitempty"`
	GuestPhone    string    `json:"guest_phone,omitempty"`
	IsPrimary     bool      `json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate validates all booking fields
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrInvalidUserID
	}
	if strings.TrimSpace(b.BranchID) == "" {
		return ErrInvalidBranchID
	}
	if len(b.Items) == 0 {
		return ErrNoBookingItems
	}
	if !b.Status.IsValid() {
		return ErrInvalidBookingStatus
	}
	if !b.PaymentStatus.IsValid() {
		return ErrInvalidPaymentStatus
	}
	for _, item := range b.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	if b.TotalAmount.IsNegative() || b.Subtotal.IsNegative() ||
		b.DiscountAmount.IsNegative() || b.TaxAmount.IsNegative() || b.FeeAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Validate validates a single booking item
func (i *BookingItem) Validate() error {
	if strings.TrimSpace(i.CourtID) == "" {
		return ErrInvalidCourtID
	}
	if strings.TrimSpace(i.ServiceID) == "" {
		return ErrInvalidServiceID
	}
	if !i.Window.End.After(i.Window.Start) {
		return ErrInvalidTimeRange
	}
	mins, whole := i.Window.DurationMinutes()
	if !whole || mins <= 0 || mins != i.DurationMinutes {
		return ErrInvalidDuration
	}
	return nil
}

// RecomputeTotal derives TotalAmount from its components. The total is never
// set independently.
func (b *Booking) RecomputeTotal() error {
	total := b.Subtotal.Sub(b.DiscountAmount).Add(b.TaxAmount).Add(b.FeeAmount)
	if total.IsNegative() {
		return ErrInvalidAmount
	}
	b.TotalAmount = total
	return nil
}

// Confirm transitions the booking to confirmed after a successful payment.
func (b *Booking) Confirm(paymentID string, at time.Time) error {
	if b.Status == BookingStatusConfirmed {
		return ErrAlreadyConfirmed
	}
	if !b.Status.CanTransitionTo(BookingStatusConfirmed) {
		return ErrInvalidTransition
	}
	b.Status = BookingStatusConfirmed
	b.PaymentID = paymentID
	b.ConfirmedAt = &at
	b.UpdatedAt = at
	return nil
}

// Cancel transitions the booking to cancelled, recording who and why.
func (b *Booking) Cancel(byUserID, reason string, at time.Time) error {
	if b.Status == BookingStatusCancelled {
		return ErrAlreadyCancelled
	}
	if !b.Status.CanTransitionTo(BookingStatusCancelled) {
		return ErrBookingFinalized
	}
	b.Status = BookingStatusCancelled
	b.CancelledAt = &at
	b.CancelledBy = byUserID
	b.CancelReason = reason
	b.UpdatedAt = at
	return nil
}

// CountsAgainstAvailability reports whether the booking's items occupy
// their court windows. Cancelled and expired bookings free their slots.
func (b *Booking) CountsAgainstAvailability() bool {
	return b.Status != BookingStatusCancelled && b.Status != BookingStatusExpired
}

// BelongsToUser checks if the booking belongs to the specified user
func (b *Booking) BelongsToUser(userID string) bool {
	return b.UserID == userID
}

// NewBookingNumber generates a human-readable booking number, e.g.
// BK-20260831-a1b2c3.
func NewBookingNumber(at time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("BK-%s-%06d", at.UTC().Format("20060102"), at.UnixNano()%1000000)
	}
	return fmt.Sprintf("BK-%s-%s", at.UTC().Format("20060102"), hex.EncodeToString(buf))
}
