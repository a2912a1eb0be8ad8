package service

import (
	"context"
	"testing"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/shopspring/decimal"
)

func eventBooking() *domain.Booking {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:            "booking-1",
		BookingNumber: "BK-20260907-a1b2c3",
		BranchID:      "branch-1",
		UserID:        "user-001",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(1000),
		Currency:      "THB",
		Items: []*domain.BookingItem{
			{ID: "item-1", CourtID: "court-1", ServiceID: "svc", Window: domain.TimeWindow{Start: start, End: start.Add(time.Hour)}},
			{ID: "item-2", CourtID: "court-2", ServiceID: "svc", Window: domain.TimeWindow{Start: start, End: start.Add(time.Hour)}},
		},
	}
}

func TestNoOpEventPublisher(t *testing.T) {
	p := NewNoOpEventPublisher()
	booking := eventBooking()
	ctx := context.Background()

	if err := p.PublishBookingCreated(ctx, booking); err != nil {
		t.Errorf("PublishBookingCreated() error = %v", err)
	}
	if err := p.PublishBookingConfirmed(ctx, booking); err != nil {
		t.Errorf("PublishBookingConfirmed() error = %v", err)
	}
	if err := p.PublishBookingCancelled(ctx, booking); err != nil {
		t.Errorf("PublishBookingCancelled() error = %v", err)
	}
	if err := p.PublishBookingExpired(ctx, booking); err != nil {
		t.Errorf("PublishBookingExpired() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewBookingEvent(t *testing.T) {
	booking := eventBooking()

	event := domain.NewBookingEvent(domain.BookingEventCreated, booking, "event-id-123")

	if event.EventID != "event-id-123" {
		t.Errorf("event id = %s, want event-id-123", event.EventID)
	}
	if event.EventType != domain.BookingEventCreated {
		t.Errorf("event type = %s, want %s", event.EventType, domain.BookingEventCreated)
	}
	if event.BookingID != booking.ID {
		t.Errorf("booking id = %s, want %s", event.BookingID, booking.ID)
	}
	if event.TotalAmount != "1000" {
		t.Errorf("total amount = %s, want 1000", event.TotalAmount)
	}
	if len(event.CourtIDs) != 2 || event.CourtIDs[0] != "court-1" || event.CourtIDs[1] != "court-2" {
		t.Errorf("court ids = %v, want [court-1 court-2]", event.CourtIDs)
	}

	// Events for the same booking must land on the same partition
	if event.Key() != booking.ID {
		t.Errorf("key = %s, want %s", event.Key(), booking.ID)
	}
}

func TestBookingEventTypes(t *testing.T) {
	want := map[domain.BookingEventType]string{
		domain.BookingEventCreated:   "booking.created",
		domain.BookingEventConfirmed: "booking.confirmed",
		domain.BookingEventCancelled: "booking.cancelled",
		domain.BookingEventExpired:   "booking.expired",
	}
	for typ, s := range want {
		if string(typ) != s {
			t.Errorf("event type = %s, want %s", typ, s)
		}
	}
}
