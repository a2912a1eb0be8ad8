package dto

import "time"

// AvailabilityQuery holds the parsed query range for an availability lookup
type AvailabilityQuery struct {
	From time.Time `form:"from" binding:"required"`
	To   time.Time `form:"to" binding:"required"`
}

// CourtAvailabilityResponse describes one court's state within the range
type CourtAvailabilityResponse struct {
	CourtID    string           `json:"court_id"`
	Name       string           `json:"name"`
	Status     string           `json:"status"`
	HourlyRate string           `json:"hourly_rate"`
	Currency   string           `json:"currency"`
	Busy       []WindowResponse `json:"busy"`
	Blocked    []WindowResponse `json:"blocked"`
}

// WindowResponse is a half-open time interval in API responses
type WindowResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// OpenHoursResponse is the resolved open window for one calendar date
type OpenHoursResponse struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed"`
}

// AvailabilityResponse is the branch availability snapshot
type AvailabilityResponse struct {
	BranchID string                      `json:"branch_id"`
	From     time.Time                   `json:"from"`
	To       time.Time                   `json:"to"`
	Hours    []OpenHoursResponse         `json:"hours"`
	Courts   []CourtAvailabilityResponse `json:"courts"`
}

// RateQuery holds the parsed query range for a rate lookup
type RateQuery struct {
	Start time.Time `form:"start" binding:"required"`
	End   time.Time `form:"end" binding:"required"`
}

// RateResponse is the resolved price for a court and window
type RateResponse struct {
	CourtID     string    `json:"court_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	RatePerHour string    `json:"rate_per_hour"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
}
