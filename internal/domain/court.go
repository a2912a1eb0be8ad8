package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CourtStatus represents the operational status of a court
type CourtStatus string

const (
	CourtStatusActive      CourtStatus = "active"
	CourtStatusMaintenance CourtStatus = "maintenance"
	CourtStatusClosed      CourtStatus = "closed"
)

// IsValid checks if the status is a valid CourtStatus
func (s CourtStatus) IsValid() bool {
	switch s {
	case CourtStatusActive, CourtStatusMaintenance, CourtStatusClosed:
		return true
	}
	return false
}

// String returns the string representation of CourtStatus
func (s CourtStatus) String() string {
	return string(s)
}

// Court represents a bookable court within a branch. Courts are never
// physically deleted, only retired via status or soft-delete.
type Court struct {
	ID         string          `json:"id"`
	BranchID   string          `json:"branch_id"`
	Name       string          `json:"name"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Currency   string          `json:"currency"`
	Status     CourtStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

// IsBookable reports whether new reservations may target the court.
func (c *Court) IsBookable() bool {
	return c.Status == CourtStatusActive && c.DeletedAt == nil
}

// MinutesOfDay is a time-of-day expressed as minutes since midnight.
type MinutesOfDay int

// TimeOfDay extracts the minutes-since-midnight of an instant in UTC.
func TimeOfDay(t time.Time) MinutesOfDay {
	t = t.UTC()
	return MinutesOfDay(t.Hour()*60 + t.Minute())
}

// String formats the time-of-day as HH:MM.
func (m MinutesOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// RateRule is a time-scoped price override for one court or for every
// court in a branch (CourtID nil).
type RateRule struct {
	ID          string          `json:"id"`
	BranchID    string          `json:"branch_id"`
	CourtID     *string         `json:"court_id,omitempty"`
	DayOfWeek   *int            `json:"day_of_week,omitempty"` // 0=Sunday..6, nil = any day
	StartMinute MinutesOfDay    `json:"start_minute"`
	EndMinute   MinutesOfDay    `json:"end_minute"`
	RatePerHour decimal.Decimal `json:"rate_per_hour"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidUntil  *time.Time      `json:"valid_until,omitempty"` // nil = open-ended
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// Matches reports whether the rule applies to the given window. The rule's
// time-of-day span is half-open, like every other interval in this package.
func (r *RateRule) Matches(courtID string, w TimeWindow) bool {
	if !r.Active || r.DeletedAt != nil {
		return false
	}
	if r.CourtID != nil && *r.CourtID != courtID {
		return false
	}
	day := w.Start.UTC()
	if day.Before(truncateToDay(r.ValidFrom)) {
		return false
	}
	if r.ValidUntil != nil && day.After(endOfDay(*r.ValidUntil)) {
		return false
	}
	if r.DayOfWeek != nil && int(day.Weekday()) != *r.DayOfWeek {
		return false
	}
	start := TimeOfDay(w.Start)
	end := start + MinutesOfDay(w.Duration()/time.Minute)
	return r.StartMinute < end && start < r.EndMinute
}

// IsCourtSpecific reports whether the rule targets a single court.
func (r *RateRule) IsCourtSpecific() bool {
	return r.CourtID != nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return truncateToDay(t).Add(24*time.Hour - time.Nanosecond)
}
