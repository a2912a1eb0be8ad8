package dto

import (
	"time"

	"github.com/courtbook/courtbook/internal/domain"
)

// JoinWaitlistRequest represents request to join the standby list for a slot
type JoinWaitlistRequest struct {
	BranchID  string    `json:"branch_id" binding:"required"`
	CourtID   string    `json:"court_id" binding:"required"`
	ServiceID string    `json:"service_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Priority  int       `json:"priority,omitempty"`
}

// WaitlistResponse represents a waitlist entry in API response
type WaitlistResponse struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	CourtID   string    `json:"court_id"`
	ServiceID string    `json:"service_id"`
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Priority  int       `json:"priority"`
	Status    string    `json:"status"`
	BookingID string    `json:"booking_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// WaitlistFromDomain converts a domain waitlist entry to its API response
func WaitlistFromDomain(w *domain.BookingWaitlist) *WaitlistResponse {
	resp := &WaitlistResponse{
		ID:        w.ID,
		BranchID:  w.BranchID,
		CourtID:   w.CourtID,
		ServiceID: w.ServiceID,
		UserID:    w.UserID,
		StartTime: w.Window.Start,
		EndTime:   w.Window.End,
		Priority:  w.Priority,
		Status:    string(w.Status),
		ExpiresAt: w.ExpiresAt,
		CreatedAt: w.CreatedAt,
	}
	if w.BookingID != nil {
		resp.BookingID = *w.BookingID
	}
	return resp
}
