package service

import (
	"context"
	"sync"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/shopspring/decimal"
)

// MockBookingRepository is a mock implementation of repository.BookingRepository
type MockBookingRepository struct {
	CreateBookingFunc       func(ctx context.Context, booking *domain.Booking) error
	GetByIDFunc             func(ctx context.Context, id string) (*domain.Booking, error)
	GetByIdempotencyKeyFunc func(ctx context.Context, companyID, key string) (*domain.Booking, error)
	ListByUserFunc          func(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error)
	ListByBranchFunc        func(ctx context.Context, branchID string, window domain.TimeWindow, limit, offset int) ([]*domain.Booking, error)
	ItemsInWindowFunc       func(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.BookingItem, error)
	ConfirmFunc             func(ctx context.Context, id, paymentID string, at time.Time) error
	CancelFunc              func(ctx context.Context, id, byUserID, reason string, at time.Time) error
	MarkExpiredFunc         func(ctx context.Context, id string, at time.Time) error
	GetExpiredPendingFunc   func(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error)
	CountActiveByUserFunc   func(ctx context.Context, userID, branchID string) (int, error)
	UpdatePaymentStatusFunc func(ctx context.Context, id string, from, to domain.PaymentStatus, paymentID string) error
	AppendChangeLogFunc     func(ctx context.Context, entry *domain.BookingChangeLog) error
	ListChangeLogsFunc      func(ctx context.Context, bookingID string) ([]*domain.BookingChangeLog, error)
}

func (m *MockBookingRepository) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	if m.CreateBookingFunc != nil {
		return m.CreateBookingFunc(ctx, booking)
	}
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) GetByIdempotencyKey(ctx context.Context, companyID, key string) (*domain.Booking, error) {
	if m.GetByIdempotencyKeyFunc != nil {
		return m.GetByIdempotencyKeyFunc(ctx, companyID, key)
	}
	return nil, nil
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	return []*domain.Booking{}, nil
}

func (m *MockBookingRepository) ListByBranch(ctx context.Context, branchID string, window domain.TimeWindow, limit, offset int) ([]*domain.Booking, error) {
	if m.ListByBranchFunc != nil {
		return m.ListByBranchFunc(ctx, branchID, window, limit, offset)
	}
	return []*domain.Booking{}, nil
}

func (m *MockBookingRepository) ItemsInWindow(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.BookingItem, error) {
	if m.ItemsInWindowFunc != nil {
		return m.ItemsInWindowFunc(ctx, branchID, window)
	}
	return nil, nil
}

func (m *MockBookingRepository) Confirm(ctx context.Context, id, paymentID string, at time.Time) error {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, id, paymentID, at)
	}
	return nil
}

func (m *MockBookingRepository) Cancel(ctx context.Context, id, byUserID, reason string, at time.Time) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id, byUserID, reason, at)
	}
	return nil
}

func (m *MockBookingRepository) MarkExpired(ctx context.Context, id string, at time.Time) error {
	if m.MarkExpiredFunc != nil {
		return m.MarkExpiredFunc(ctx, id, at)
	}
	return nil
}

func (m *MockBookingRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	if m.GetExpiredPendingFunc != nil {
		return m.GetExpiredPendingFunc(ctx, now, limit)
	}
	return []*domain.Booking{}, nil
}

func (m *MockBookingRepository) CountActiveByUser(ctx context.Context, userID, branchID string) (int, error) {
	if m.CountActiveByUserFunc != nil {
		return m.CountActiveByUserFunc(ctx, userID, branchID)
	}
	return 0, nil
}

func (m *MockBookingRepository) UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, paymentID string) error {
	if m.UpdatePaymentStatusFunc != nil {
		return m.UpdatePaymentStatusFunc(ctx, id, from, to, paymentID)
	}
	return nil
}

func (m *MockBookingRepository) AppendChangeLog(ctx context.Context, entry *domain.BookingChangeLog) error {
	if m.AppendChangeLogFunc != nil {
		return m.AppendChangeLogFunc(ctx, entry)
	}
	return nil
}

func (m *MockBookingRepository) ListChangeLogs(ctx context.Context, bookingID string) ([]*domain.BookingChangeLog, error) {
	if m.ListChangeLogsFunc != nil {
		return m.ListChangeLogsFunc(ctx, bookingID)
	}
	return []*domain.BookingChangeLog{}, nil
}

// MockScheduleRepository is a mock implementation of repository.ScheduleRepository.
// The zero value describes a branch that is always open with one active court.
type MockScheduleRepository struct {
	GetBranchFunc          func(ctx context.Context, id string) (*domain.Branch, error)
	GetCourtFunc           func(ctx context.Context, id string) (*domain.Court, error)
	ListCourtsFunc         func(ctx context.Context, branchID string) ([]*domain.Court, error)
	GetBusinessHoursFunc   func(ctx context.Context, branchID string) ([]*domain.BusinessHours, error)
	GetSpecialHoursFunc    func(ctx context.Context, branchID string, date time.Time) (*domain.SpecialHours, error)
	ListResourceBlocksFunc func(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.ResourceBlock, error)
	ListRateRulesFunc      func(ctx context.Context, branchID string, at time.Time) ([]*domain.RateRule, error)
}

func (m *MockScheduleRepository) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	if m.GetBranchFunc != nil {
		return m.GetBranchFunc(ctx, id)
	}
	return &domain.Branch{ID: id, CompanyID: "company-1", Name: "Test Branch", Timezone: "UTC"}, nil
}

func (m *MockScheduleRepository) GetCourt(ctx context.Context, id string) (*domain.Court, error) {
	if m.GetCourtFunc != nil {
		return m.GetCourtFunc(ctx, id)
	}
	return &domain.Court{
		ID:         id,
		BranchID:   "branch-1",
		Name:       "Court 1",
		HourlyRate: decimal.NewFromInt(500),
		Currency:   "THB",
		Status:     domain.CourtStatusActive,
	}, nil
}

func (m *MockScheduleRepository) ListCourts(ctx context.Context, branchID string) ([]*domain.Court, error) {
	if m.ListCourtsFunc != nil {
		return m.ListCourtsFunc(ctx, branchID)
	}
	return []*domain.Court{{
		ID:         "court-1",
		BranchID:   branchID,
		Name:       "Court 1",
		HourlyRate: decimal.NewFromInt(500),
		Currency:   "THB",
		Status:     domain.CourtStatusActive,
	}}, nil
}

func (m *MockScheduleRepository) GetBusinessHours(ctx context.Context, branchID string) ([]*domain.BusinessHours, error) {
	if m.GetBusinessHoursFunc != nil {
		return m.GetBusinessHoursFunc(ctx, branchID)
	}
	hours := make([]*domain.BusinessHours, 7)
	for day := 0; day < 7; day++ {
		hours[day] = &domain.BusinessHours{
			BranchID:    branchID,
			DayOfWeek:   day,
			OpenMinute:  0,
			CloseMinute: 24 * 60,
		}
	}
	return hours, nil
}

func (m *MockScheduleRepository) GetSpecialHours(ctx context.Context, branchID string, date time.Time) (*domain.SpecialHours, error) {
	if m.GetSpecialHoursFunc != nil {
		return m.GetSpecialHoursFunc(ctx, branchID, date)
	}
	return nil, nil
}

func (m *MockScheduleRepository) ListResourceBlocks(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.ResourceBlock, error) {
	if m.ListResourceBlocksFunc != nil {
		return m.ListResourceBlocksFunc(ctx, branchID, window)
	}
	return nil, nil
}

func (m *MockScheduleRepository) ListRateRules(ctx context.Context, branchID string, at time.Time) ([]*domain.RateRule, error) {
	if m.ListRateRulesFunc != nil {
		return m.ListRateRulesFunc(ctx, branchID, at)
	}
	return nil, nil
}

// MockWaitlistRepository is a mock implementation of repository.WaitlistRepository
type MockWaitlistRepository struct {
	CreateFunc           func(ctx context.Context, entry *domain.BookingWaitlist) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.BookingWaitlist, error)
	ListActiveBySlotFunc func(ctx context.Context, courtID string, window domain.TimeWindow) ([]*domain.BookingWaitlist, error)
	MarkPromotedFunc     func(ctx context.Context, id, bookingID string, at time.Time) error
	ExpireStaleFunc      func(ctx context.Context, now time.Time, limit int) (int, error)
	RemoveFunc           func(ctx context.Context, id, userID string) error
}

func (m *MockWaitlistRepository) Create(ctx context.Context, entry *domain.BookingWaitlist) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

func (m *MockWaitlistRepository) GetByID(ctx context.Context, id string) (*domain.BookingWaitlist, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrWaitlistNotFound
}

func (m *MockWaitlistRepository) ListActiveBySlot(ctx context.Context, courtID string, window domain.TimeWindow) ([]*domain.BookingWaitlist, error) {
	if m.ListActiveBySlotFunc != nil {
		return m.ListActiveBySlotFunc(ctx, courtID, window)
	}
	return []*domain.BookingWaitlist{}, nil
}

func (m *MockWaitlistRepository) MarkPromoted(ctx context.Context, id, bookingID string, at time.Time) error {
	if m.MarkPromotedFunc != nil {
		return m.MarkPromotedFunc(ctx, id, bookingID, at)
	}
	return nil
}

func (m *MockWaitlistRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	if m.ExpireStaleFunc != nil {
		return m.ExpireStaleFunc(ctx, now, limit)
	}
	return 0, nil
}

func (m *MockWaitlistRepository) Remove(ctx context.Context, id, userID string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, id, userID)
	}
	return nil
}

// CapturingEventPublisher records published event types for assertions
type CapturingEventPublisher struct {
	mu     sync.Mutex
	Events []domain.BookingEventType
}

func (p *CapturingEventPublisher) record(t domain.BookingEventType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, t)
}

// Published returns a copy of the recorded event types
func (p *CapturingEventPublisher) Published() []domain.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.BookingEventType, len(p.Events))
	copy(out, p.Events)
	return out
}

func (p *CapturingEventPublisher) PublishBookingCreated(ctx context.Context, booking *domain.Booking) error {
	p.record(domain.BookingEventCreated)
	return nil
}

func (p *CapturingEventPublisher) PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	p.record(domain.BookingEventConfirmed)
	return nil
}

func (p *CapturingEventPublisher) PublishBookingCancelled(ctx context.Context, booking *domain.Booking) error {
	p.record(domain.BookingEventCancelled)
	return nil
}

func (p *CapturingEventPublisher) PublishBookingExpired(ctx context.Context, booking *domain.Booking) error {
	p.record(domain.BookingEventExpired)
	return nil
}

func (p *CapturingEventPublisher) Close() error {
	return nil
}
