package dto

import (
	"time"

	"github.com/courtbook/courtbook/internal/domain"
)

// ParticipantRequest names one player on a booking item
type ParticipantRequest struct {
	UserID     string `json:"user_id,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestEmail string `json:"guest_email,omitempty" binding:"omitempty,email"`
	GuestPhone string `json:"guest_phone,omitempty"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
}

// BookingItemRequest reserves one court for one time window
type BookingItemRequest struct {
	CourtID      string               `json:"court_id" binding:"required"`
	ServiceID    string               `json:"service_id" binding:"required"`
	StartTime    time.Time            `json:"start_time" binding:"required"`
	EndTime      time.Time            `json:"end_time" binding:"required"`
	Participants []ParticipantRequest `json:"participants,omitempty"`
}

// CreateBookingRequest represents request to create a booking
type CreateBookingRequest struct {
	BranchID       string               `json:"branch_id" binding:"required"`
	Items          []BookingItemRequest `json:"items" binding:"required,min=1,max=10"`
	PromoCode      string               `json:"promo_code,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// CancelBookingRequest represents request to cancel a booking
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// PaymentCallbackRequest is the normalized payload of a payment-provider
// webhook after signature verification
type PaymentCallbackRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Succeeded bool   `json:"succeeded"`
}

// ParticipantResponse represents a participant in API response
type ParticipantResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	GuestName string `json:"guest_name,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// BookingItemResponse represents one reserved slot in API response
type BookingItemResponse struct {
	ID              string                `json:"id"`
	CourtID         string                `json:"court_id"`
	ServiceID       string                `json:"service_id"`
	StartTime       time.Time             `json:"start_time"`
	EndTime         time.Time             `json:"end_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	UnitPrice       string                `json:"unit_price"`
	Total           string                `json:"total"`
	Participants    []ParticipantResponse `json:"participants,omitempty"`
}

// BookingResponse represents a booking in API response
type BookingResponse struct {
	ID             string                `json:"id"`
	BookingNumber  string                `json:"booking_number"`
	BranchID       string                `json:"branch_id"`
	UserID         string                `json:"user_id"`
	Status         string                `json:"status"`
	PaymentStatus  string                `json:"payment_status"`
	PaymentID      string                `json:"payment_id,omitempty"`
	Subtotal       string                `json:"subtotal"`
	DiscountAmount string                `json:"discount_amount"`
	TaxAmount      string                `json:"tax_amount"`
	FeeAmount      string                `json:"fee_amount"`
	TotalAmount    string                `json:"total_amount"`
	Currency       string                `json:"currency"`
	Items          []BookingItemResponse `json:"items"`
	CancelReason   string                `json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time            `json:"cancelled_at,omitempty"`
	ConfirmedAt    *time.Time            `json:"confirmed_at,omitempty"`
	ExpiresAt      *time.Time            `json:"expires_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data     interface{} `json:"data"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	HasMore  bool        `json:"has_more"`
}

// FromDomain converts domain Booking to BookingResponse
func FromDomain(b *domain.Booking) *BookingResponse {
	items := make([]BookingItemResponse, len(b.Items))
	for i, item := range b.Items {
		items[i] = itemFromDomain(item)
	}
	return &BookingResponse{
		ID:             b.ID,
		BookingNumber:  b.BookingNumber,
		BranchID:       b.BranchID,
		UserID:         b.UserID,
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		PaymentID:      b.PaymentID,
		Subtotal:       b.Subtotal.String(),
		DiscountAmount: b.DiscountAmount.String(),
		TaxAmount:      b.TaxAmount.String(),
		FeeAmount:      b.FeeAmount.String(),
		TotalAmount:    b.TotalAmount.String(),
		Currency:       b.Currency,
		Items:          items,
		CancelReason:   b.CancelReason,
		CancelledAt:    b.CancelledAt,
		ConfirmedAt:    b.ConfirmedAt,
		ExpiresAt:      b.ExpiresAt,
		CreatedAt:      b.CreatedAt,
	}
}

func itemFromDomain(item *domain.BookingItem) BookingItemResponse {
	participants := make([]ParticipantResponse, 0, len(item.Participants))
	for _, p := range item.Participants {
		pr := ParticipantResponse{
			ID:        p.ID,
			GuestName: p.GuestName,
			IsPrimary: p.IsPrimary,
		}
		if p.UserID != nil {
			pr.UserID = *p.UserID
		}
		participants = append(participants, pr)
	}
	return BookingItemResponse{
		ID:              item.ID,
		CourtID:         item.CourtID,
		ServiceID:       item.ServiceID,
		StartTime:       item.Window.Start,
		EndTime:         item.Window.End,
		DurationMinutes: item.DurationMinutes,
		UnitPrice:       item.UnitPrice.String(),
		Total:           item.Total.String(),
		Participants:    participants,
	}
}
