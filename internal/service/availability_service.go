package service

import (
	"context"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AvailabilityService aggregates schedule facts into a bookability view.
type AvailabilityService interface {
	// GetBranchAvailability loads everything needed to answer "is this
	// court free at this time" for a branch and range: open hours,
	// date overrides, active blocks and busy intervals.
	GetBranchAvailability(ctx context.Context, branchID string, window domain.TimeWindow) (*AvailabilitySnapshot, error)
}

// AvailabilitySnapshot is a point-in-time read of a branch's schedule. It
// holds raw facts, not a slot grid; callers ask it about concrete windows.
// The snapshot is advisory: the reservation transaction re-checks conflicts
// before committing.
type AvailabilitySnapshot struct {
	BranchID string
	Window   domain.TimeWindow
	Courts   []*domain.Court

	hoursByDay    map[int]*domain.BusinessHours
	specialByDate map[string]*domain.SpecialHours
	blocks        []*domain.ResourceBlock
	busyByCourt   map[string][]domain.TimeWindow
}

// dayKey formats a date for special-hours lookup
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// OpenHoursOn resolves the open window for one calendar date. A special-hours
// row replaces the weekly schedule entirely, including its closed flag.
func (s *AvailabilitySnapshot) OpenHoursOn(date time.Time) (open, close domain.MinutesOfDay, closed bool) {
	if sp, ok := s.specialByDate[dayKey(date)]; ok {
		return sp.OpenMinute, sp.CloseMinute, sp.Closed
	}
	bh, ok := s.hoursByDay[int(date.UTC().Weekday())]
	if !ok {
		return 0, 0, true
	}
	return bh.OpenMinute, bh.CloseMinute, bh.Closed
}

// IsBranchOpen reports whether the branch is open for the entire window,
// walking each calendar day the window touches.
func (s *AvailabilitySnapshot) IsBranchOpen(w domain.TimeWindow) bool {
	day := truncateToMidnight(w.Start)
	for day.Before(w.End) {
		next := day.Add(24 * time.Hour)
		segment, ok := w.Intersect(domain.TimeWindow{Start: day, End: next})
		if ok {
			open, close, closed := s.OpenHoursOn(day)
			if closed {
				return false
			}
			segStart := domain.TimeOfDay(segment.Start)
			segEnd := segStart + domain.MinutesOfDay(segment.Duration()/time.Minute)
			if segStart < open || segEnd > close {
				return false
			}
		}
		day = next
	}
	return true
}

// BlockedWindows returns the active block intervals covering the court
func (s *AvailabilitySnapshot) BlockedWindows(courtID string) []domain.TimeWindow {
	var out []domain.TimeWindow
	for _, b := range s.blocks {
		if b.Active && b.AppliesTo(courtID) {
			out = append(out, b.Window)
		}
	}
	return out
}

// BusyWindows returns the committed booking intervals on the court
func (s *AvailabilitySnapshot) BusyWindows(courtID string) []domain.TimeWindow {
	return s.busyByCourt[courtID]
}

// IsCourtOpen reports whether the court can take a new booking for the
// window: the branch is open, the court is active, no block covers it and
// no existing booking overlaps it.
func (s *AvailabilitySnapshot) IsCourtOpen(courtID string, w domain.TimeWindow) bool {
	var court *domain.Court
	for _, c := range s.Courts {
		if c.ID == courtID {
			court = c
			break
		}
	}
	if court == nil || !court.IsBookable() {
		return false
	}
	if !s.IsBranchOpen(w) {
		return false
	}
	for _, b := range s.blocks {
		if b.Blocks(courtID, w) {
			return false
		}
	}
	for _, busy := range s.busyByCourt[courtID] {
		if busy.Overlaps(w) {
			return false
		}
	}
	return true
}

func truncateToMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type availabilityService struct {
	bookingRepo  repository.BookingRepository
	scheduleRepo repository.ScheduleRepository
}

// NewAvailabilityService creates an availability service
func NewAvailabilityService(bookingRepo repository.BookingRepository, scheduleRepo repository.ScheduleRepository) AvailabilityService {
	return &availabilityService{
		bookingRepo:  bookingRepo,
		scheduleRepo: scheduleRepo,
	}
}

var _ AvailabilityService = (*availabilityService)(nil)

func (s *availabilityService) GetBranchAvailability(ctx context.Context, branchID string, window domain.TimeWindow) (*AvailabilitySnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.availability.get_branch")
	defer span.End()

	span.SetAttributes(
		attribute.String("branch_id", branchID),
		attribute.String("from", window.Start.String()),
		attribute.String("to", window.End.String()),
	)

	if branchID == "" {
		span.SetStatus(codes.Error, "invalid branch_id")
		return nil, domain.ErrInvalidBranchID
	}
	if !window.End.After(window.Start) {
		span.SetStatus(codes.Error, "invalid time range")
		return nil, domain.ErrInvalidTimeRange
	}

	if _, err := s.scheduleRepo.GetBranch(ctx, branchID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	courts, err := s.scheduleRepo.ListCourts(ctx, branchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	hours, err := s.scheduleRepo.GetBusinessHours(ctx, branchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	hoursByDay := make(map[int]*domain.BusinessHours, len(hours))
	for _, h := range hours {
		hoursByDay[h.DayOfWeek] = h
	}

	specialByDate := make(map[string]*domain.SpecialHours)
	for day := truncateToMidnight(window.Start); day.Before(window.End); day = day.Add(24 * time.Hour) {
		sp, err := s.scheduleRepo.GetSpecialHours(ctx, branchID, day)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if sp != nil {
			specialByDate[dayKey(day)] = sp
		}
	}

	blocks, err := s.scheduleRepo.ListResourceBlocks(ctx, branchID, window)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	items, err := s.bookingRepo.ItemsInWindow(ctx, branchID, window)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	busyByCourt := make(map[string][]domain.TimeWindow)
	for _, item := range items {
		busyByCourt[item.CourtID] = append(busyByCourt[item.CourtID], item.Window)
	}

	span.SetAttributes(
		attribute.Int("courts", len(courts)),
		attribute.Int("blocks", len(blocks)),
		attribute.Int("busy_items", len(items)),
	)
	span.SetStatus(codes.Ok, "")
	return &AvailabilitySnapshot{
		BranchID:      branchID,
		Window:        window,
		Courts:        courts,
		hoursByDay:    hoursByDay,
		specialByDate: specialByDate,
		blocks:        blocks,
		busyByCourt:   busyByCourt,
	}, nil
}
