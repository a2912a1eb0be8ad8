package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/dto"
	"github.com/shopspring/decimal"
)

// slotWindow returns an hour-aligned window daysAhead in the future
func slotWindow(daysAhead, durMinutes int) (time.Time, time.Time) {
	start := time.Now().UTC().Add(time.Duration(daysAhead) * 24 * time.Hour).Truncate(time.Hour)
	return start, start.Add(time.Duration(durMinutes) * time.Minute)
}

func newTestReservationService(
	bookingRepo *MockBookingRepository,
	scheduleRepo *MockScheduleRepository,
	publisher EventPublisher,
) ReservationService {
	availability := NewAvailabilityService(bookingRepo, scheduleRepo)
	resolver := NewRateResolver(scheduleRepo)
	return NewReservationService(bookingRepo, availability, resolver, nil, publisher, &ReservationServiceConfig{
		PendingTTL:       15 * time.Minute,
		MaxActivePerUser: 10,
		MaxAdvanceDays:   90,
		SlotGranularity:  30 * time.Minute,
		DefaultCurrency:  "THB",
	})
}

func TestReservationService_CreateBooking(t *testing.T) {
	start, end := slotWindow(2, 120)
	farStart, farEnd := slotWindow(200, 60)

	tests := []struct {
		name       string
		userID     string
		req        *dto.CreateBookingRequest
		setupMocks func(br *MockBookingRepository, sr *MockScheduleRepository)
		wantErr    error
		wantStatus domain.BookingStatus
		wantTotal  string
	}{
		{
			name:   "successful booking is pending with priced total",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID:   "court-1",
					ServiceID: "svc-tennis",
					StartTime: start,
					EndTime:   end,
				}},
			},
			wantStatus: domain.BookingStatusPending,
			wantTotal:  "1000", // 2h at 500/h
		},
		{
			name:   "zero-rate booking confirms immediately",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID:   "court-1",
					ServiceID: "svc-tennis",
					StartTime: start,
					EndTime:   end,
				}},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockScheduleRepository) {
				sr.GetCourtFunc = func(ctx context.Context, id string) (*domain.Court, error) {
					return &domain.Court{
						ID:         id,
						BranchID:   "branch-1",
						HourlyRate: decimal.Zero,
						Currency:   "THB",
						Status:     domain.CourtStatusActive,
					}, nil
				}
			},
			wantStatus: domain.BookingStatusConfirmed,
			wantTotal:  "0",
		},
		{
			name:    "nil request",
			userID:  "user-001",
			req:     nil,
			wantErr: domain.ErrNoBookingItems,
		},
		{
			name:   "missing user",
			userID: "",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
				}},
			},
			wantErr: domain.ErrInvalidUserID,
		},
		{
			name:   "missing branch",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
				}},
			},
			wantErr: domain.ErrInvalidBranchID,
		},
		{
			name:   "end before start",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: end, EndTime: start,
				}},
			},
			wantErr: domain.ErrInvalidTimeRange,
		},
		{
			name:   "duration not aligned to slot granularity",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: start.Add(45 * time.Minute),
				}},
			},
			wantErr: domain.ErrInvalidDuration,
		},
		{
			name:   "booking in the past",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID:   "court-1",
					ServiceID: "svc-tennis",
					StartTime: start.Add(-96 * time.Hour),
					EndTime:   start.Add(-95 * time.Hour),
				}},
			},
			wantErr: domain.ErrBookingInPast,
		},
		{
			name:   "booking beyond advance horizon",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: farStart, EndTime: farEnd,
				}},
			},
			wantErr: domain.ErrBookingTooFarAhead,
		},
		{
			name:   "user active booking limit reached",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
				}},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockScheduleRepository) {
				br.CountActiveByUserFunc = func(ctx context.Context, userID, branchID string) (int, error) {
					return 10, nil
				}
			},
			wantErr: domain.ErrTooManyActiveBookings,
		},
		{
			name:   "branch closed during the window",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
				}},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockScheduleRepository) {
				sr.GetBusinessHoursFunc = func(ctx context.Context, branchID string) ([]*domain.BusinessHours, error) {
					hours := make([]*domain.BusinessHours, 7)
					for day := 0; day < 7; day++ {
						hours[day] = &domain.BusinessHours{BranchID: branchID, DayOfWeek: day, Closed: true}
					}
					return hours, nil
				}
			},
			wantErr: domain.ErrBranchClosed,
		},
		{
			name:   "slot conflict from the transaction surfaces unchanged",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
				}},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockScheduleRepository) {
				br.CreateBookingFunc = func(ctx context.Context, booking *domain.Booking) error {
					return domain.ErrSlotUnavailable
				}
			},
			wantErr: domain.ErrSlotUnavailable,
		},
		{
			name:   "blocked slot from the transaction surfaces unchanged",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				BranchID: "branch-1",
				Items: []dto.BookingItemRequest{{
					CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
				}},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockScheduleRepository) {
				br.CreateBookingFunc = func(ctx context.Context, booking *domain.Booking) error {
					return domain.ErrSlotBlocked
				}
			},
			wantErr: domain.ErrSlotBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookingRepo := &MockBookingRepository{}
			scheduleRepo := &MockScheduleRepository{}
			if tt.setupMocks != nil {
				tt.setupMocks(bookingRepo, scheduleRepo)
			}

			svc := newTestReservationService(bookingRepo, scheduleRepo, NewNoOpEventPublisher())

			resp, err := svc.CreateBooking(context.Background(), tt.userID, "company-1", tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CreateBooking() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBooking() unexpected error = %v", err)
			}
			if resp.Status != string(tt.wantStatus) {
				t.Errorf("CreateBooking() status = %s, want %s", resp.Status, tt.wantStatus)
			}
			if resp.TotalAmount != tt.wantTotal {
				t.Errorf("CreateBooking() total = %s, want %s", resp.TotalAmount, tt.wantTotal)
			}
			if resp.BookingNumber == "" {
				t.Error("CreateBooking() booking number is empty")
			}
			if tt.wantStatus == domain.BookingStatusPending && resp.ExpiresAt == nil {
				t.Error("CreateBooking() pending booking has no hold deadline")
			}
			if tt.wantStatus == domain.BookingStatusConfirmed && resp.ExpiresAt != nil {
				t.Error("CreateBooking() confirmed booking still has a hold deadline")
			}
		})
	}
}

func TestReservationService_CreateBooking_IdempotentReplay(t *testing.T) {
	start, end := slotWindow(2, 60)
	existing := &domain.Booking{
		ID:            "existing-id",
		BookingNumber: "BK-20260901-abc123",
		BranchID:      "branch-1",
		UserID:        "user-001",
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusSucceeded,
		Currency:      "THB",
		Items: []*domain.BookingItem{{
			ID:              "item-1",
			CourtID:         "court-1",
			ServiceID:       "svc-tennis",
			Window:          domain.TimeWindow{Start: start, End: end},
			DurationMinutes: 60,
		}},
	}

	createCalled := false
	bookingRepo := &MockBookingRepository{
		GetByIdempotencyKeyFunc: func(ctx context.Context, companyID, key string) (*domain.Booking, error) {
			if companyID != "company-1" || key != "retry-key" {
				t.Errorf("GetByIdempotencyKey called with (%s, %s)", companyID, key)
			}
			return existing, nil
		},
		CreateBookingFunc: func(ctx context.Context, booking *domain.Booking) error {
			createCalled = true
			return nil
		},
	}
	publisher := &CapturingEventPublisher{}
	svc := newTestReservationService(bookingRepo, &MockScheduleRepository{}, publisher)

	resp, err := svc.CreateBooking(context.Background(), "user-001", "company-1", &dto.CreateBookingRequest{
		BranchID:       "branch-1",
		IdempotencyKey: "retry-key",
		Items: []dto.BookingItemRequest{{
			CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
		}},
	})
	if err != nil {
		t.Fatalf("CreateBooking() unexpected error = %v", err)
	}
	if resp.ID != existing.ID {
		t.Errorf("CreateBooking() replay returned %s, want %s", resp.ID, existing.ID)
	}
	if createCalled {
		t.Error("CreateBooking() replayed request hit the repository create path")
	}
	if len(publisher.Published()) != 0 {
		t.Error("CreateBooking() replayed request published events")
	}
}

func TestReservationService_CreateBooking_PublishesEvents(t *testing.T) {
	start, end := slotWindow(2, 60)
	publisher := &CapturingEventPublisher{}
	svc := newTestReservationService(&MockBookingRepository{}, &MockScheduleRepository{}, publisher)

	_, err := svc.CreateBooking(context.Background(), "user-001", "company-1", &dto.CreateBookingRequest{
		BranchID: "branch-1",
		Items: []dto.BookingItemRequest{{
			CourtID: "court-1", ServiceID: "svc-tennis", StartTime: start, EndTime: end,
		}},
	})
	if err != nil {
		t.Fatalf("CreateBooking() unexpected error = %v", err)
	}

	events := publisher.Published()
	if len(events) != 1 || events[0] != domain.BookingEventCreated {
		t.Errorf("CreateBooking() published %v, want [%s]", events, domain.BookingEventCreated)
	}
}

func TestReservationService_GetBooking(t *testing.T) {
	start, end := slotWindow(1, 60)
	booking := &domain.Booking{
		ID:       "booking-1",
		BranchID: "branch-1",
		UserID:   "user-001",
		Status:   domain.BookingStatusPending,
		Items: []*domain.BookingItem{{
			CourtID: "court-1", ServiceID: "svc", Window: domain.TimeWindow{Start: start, End: end},
		}},
	}
	bookingRepo := &MockBookingRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			if id == "booking-1" {
				return booking, nil
			}
			return nil, domain.ErrBookingNotFound
		},
	}
	svc := newTestReservationService(bookingRepo, &MockScheduleRepository{}, nil)

	if _, err := svc.GetBooking(context.Background(), "booking-1", "user-001"); err != nil {
		t.Errorf("GetBooking() owner lookup error = %v", err)
	}

	// A foreign booking reads as absent, not forbidden
	if _, err := svc.GetBooking(context.Background(), "booking-1", "user-002"); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("GetBooking() foreign lookup error = %v, want %v", err, domain.ErrBookingNotFound)
	}

	if _, err := svc.GetBooking(context.Background(), "missing", "user-001"); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("GetBooking() missing lookup error = %v, want %v", err, domain.ErrBookingNotFound)
	}
}

func TestReservationService_GetUserBookings_Pagination(t *testing.T) {
	bookings := make([]*domain.Booking, 21)
	for i := range bookings {
		bookings[i] = &domain.Booking{ID: "b", UserID: "user-001", Status: domain.BookingStatusConfirmed}
	}
	bookingRepo := &MockBookingRepository{
		ListByUserFunc: func(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
			if limit != 21 { // page size plus the extra row
				t.Errorf("ListByUser limit = %d, want 21", limit)
			}
			return bookings, nil
		},
	}
	svc := newTestReservationService(bookingRepo, &MockScheduleRepository{}, nil)

	resp, err := svc.GetUserBookings(context.Background(), "user-001", 1, 20)
	if err != nil {
		t.Fatalf("GetUserBookings() unexpected error = %v", err)
	}
	if !resp.HasMore {
		t.Error("GetUserBookings() HasMore = false, want true")
	}
	if got := len(resp.Data.([]*dto.BookingResponse)); got != 20 {
		t.Errorf("GetUserBookings() returned %d bookings, want 20", got)
	}
}
