package domain

import "time"

// ChangeType categorizes an entry in a booking's audit trail.
type ChangeType string

const (
	ChangeTypeCreated       ChangeType = "created"
	ChangeTypeConfirmed     ChangeType = "confirmed"
	ChangeTypeCancelled     ChangeType = "cancelled"
	ChangeTypeExpired       ChangeType = "expired"
	ChangeTypePaymentUpdate ChangeType = "payment_update"
)

// BookingChangeLog is an append-only record of a state transition on a
// booking. Entries are never updated or deleted.
type BookingChangeLog struct {
	ID         string     `json:"id"`
	BookingID  string     `json:"booking_id"`
	ChangeType ChangeType `json:"change_type"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ChangedBy  string     `json:"changed_by"`
	ChangedAt  time.Time  `json:"changed_at"`
}

// NewChangeLog builds an audit entry for a booking transition.
func NewChangeLog(bookingID string, changeType ChangeType, oldValue, newValue, reason, byUserID string, at time.Time) *BookingChangeLog {
	return &BookingChangeLog{
		BookingID:  bookingID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
		Reason:     reason,
		ChangedBy:  byUserID,
		ChangedAt:  at,
	}
}
