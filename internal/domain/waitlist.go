package domain

import (
	"strings"
	"time"
)

// WaitlistStatus represents the state of a waitlist entry
type WaitlistStatus string

const (
	WaitlistStatusActive   WaitlistStatus = "active"
	WaitlistStatusPromoted WaitlistStatus = "promoted"
	WaitlistStatusExpired  WaitlistStatus = "expired"
	WaitlistStatusRemoved  WaitlistStatus = "removed"
)

// BookingWaitlist is a standby request for a court/time-range that could not
// be booked. Promotion to a real booking is an explicit administrative
// action; there is no automatic promotion trigger.
type BookingWaitlist struct {
	ID        string         `json:"id"`
	BranchID  string         `json:"branch_id"`
	CourtID   string         `json:"court_id"`
	ServiceID string         `json:"service_id"`
	UserID    string         `json:"user_id"`
	Window    TimeWindow     `json:"window"`
	Priority  int            `json:"priority"` // lower value = promoted first
	Status    WaitlistStatus `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
	BookingID *string        `json:"booking_id,omitempty"` // set on promotion
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// Validate validates a waitlist entry
func (w *BookingWaitlist) Validate() error {
	if strings.TrimSpace(w.UserID) == "" {
		return ErrInvalidUserID
	}
	if strings.TrimSpace(w.CourtID) == "" {
		return ErrInvalidCourtID
	}
	if strings.TrimSpace(w.BranchID) == "" {
		return ErrInvalidBranchID
	}
	if !w.Window.End.After(w.Window.Start) {
		return ErrInvalidTimeRange
	}
	return nil
}

// IsExpired checks whether the entry's standby window has lapsed.
func (w *BookingWaitlist) IsExpired(now time.Time) bool {
	return now.After(w.ExpiresAt)
}

// CanPromote reports whether the entry is eligible for promotion.
func (w *BookingWaitlist) CanPromote(now time.Time) error {
	switch w.Status {
	case WaitlistStatusPromoted:
		return ErrAlreadyPromoted
	case WaitlistStatusExpired, WaitlistStatusRemoved:
		return ErrWaitlistInactive
	}
	if w.IsExpired(now) {
		return ErrWaitlistExpired
	}
	return nil
}
