package domain

import "time"

// BookingEventType identifies a booking lifecycle event
type BookingEventType string

const (
	BookingEventCreated   BookingEventType = "booking.created"
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
	BookingEventExpired   BookingEventType = "booking.expired"
)

// BookingEvent is the payload emitted to the notification/telemetry stream
// after each booking state transition. Emission is fire-and-forget: a
// publish failure never rolls back the transition that produced it.
type BookingEvent struct {
	EventID       string           `json:"event_id"`
	EventType     BookingEventType `json:"event_type"`
	BookingID     string           `json:"booking_id"`
	BookingNumber string           `json:"booking_number"`
	BranchID      string           `json:"branch_id"`
	UserID        string           `json:"user_id"`
	Status        BookingStatus    `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	TotalAmount   string           `json:"total_amount"`
	Currency      string           `json:"currency"`
	CourtIDs      []string         `json:"court_ids"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NewBookingEvent builds an event from a booking snapshot.
func NewBookingEvent(eventType BookingEventType, booking *Booking, eventID string) *BookingEvent {
	courtIDs := make([]string, 0, len(booking.Items))
	for _, item := range booking.Items {
		courtIDs = append(courtIDs, item.CourtID)
	}
	return &BookingEvent{
		EventID:       eventID,
		EventType:     eventType,
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		BranchID:      booking.BranchID,
		UserID:        booking.UserID,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		TotalAmount:   booking.TotalAmount.String(),
		Currency:      booking.Currency,
		CourtIDs:      courtIDs,
		OccurredAt:    time.Now().UTC(),
	}
}

// Key returns the partition key for the event stream. Events for the same
// booking stay ordered.
func (e *BookingEvent) Key() string {
	return e.BookingID
}
