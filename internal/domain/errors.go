package domain

import "errors"

// Domain errors
var (
	// Booking errors
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingFinalized = errors.New("booking is in a terminal state")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrAlreadyConfirmed = errors.New("booking already confirmed")

	// Reservation conflict errors
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrSlotBlocked      = errors.New("slot blocked for maintenance or closure")
	ErrCourtUnavailable = errors.New("court is not active")
	ErrBranchClosed     = errors.New("branch is closed during the requested window")

	// Validation errors
	ErrInvalidTimeRange     = errors.New("end must be after start")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidBookingID     = errors.New("invalid booking id")
	ErrInvalidBranchID      = errors.New("invalid branch id")
	ErrInvalidCourtID       = errors.New("invalid court id")
	ErrInvalidServiceID     = errors.New("invalid service id")
	ErrNoBookingItems       = errors.New("booking requires at least one item")
	ErrInvalidDuration      = errors.New("duration must be a positive whole number of minutes")
	ErrInvalidAmount        = errors.New("amount cannot be negative")
	ErrInvalidBookingStatus = errors.New("invalid booking status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrInvalidTransition    = errors.New("status transition not allowed")

	// Booking policy errors
	ErrTooManyActiveBookings = errors.New("user has too many active bookings")
	ErrBookingTooFarAhead    = errors.New("booking starts beyond the advance window")
	ErrBookingInPast         = errors.New("booking starts in the past")
	ErrCancellationTooLate   = errors.New("cancellation cutoff has passed")

	// Not-found errors
	ErrCourtNotFound    = errors.New("court not found")
	ErrBranchNotFound   = errors.New("branch not found")
	ErrWaitlistNotFound = errors.New("waitlist entry not found")

	// Waitlist errors
	ErrWaitlistExpired  = errors.New("waitlist entry has expired")
	ErrAlreadyPromoted  = errors.New("waitlist entry already promoted")
	ErrWaitlistInactive = errors.New("waitlist entry is not active")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrCourtNotFound) ||
		errors.Is(err, ErrBranchNotFound) ||
		errors.Is(err, ErrWaitlistNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidBookingID) ||
		errors.Is(err, ErrInvalidBranchID) ||
		errors.Is(err, ErrInvalidCourtID) ||
		errors.Is(err, ErrInvalidServiceID) ||
		errors.Is(err, ErrNoBookingItems) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidBookingStatus) ||
		errors.Is(err, ErrInvalidPaymentStatus) ||
		errors.Is(err, ErrBookingTooFarAhead) ||
		errors.Is(err, ErrBookingInPast)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSlotUnavailable) ||
		errors.Is(err, ErrSlotBlocked) ||
		errors.Is(err, ErrCourtUnavailable) ||
		errors.Is(err, ErrBranchClosed) ||
		errors.Is(err, ErrBookingFinalized) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrAlreadyConfirmed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTooManyActiveBookings) ||
		errors.Is(err, ErrCancellationTooLate) ||
		errors.Is(err, ErrWaitlistExpired) ||
		errors.Is(err, ErrAlreadyPromoted) ||
		errors.Is(err, ErrWaitlistInactive)
}
