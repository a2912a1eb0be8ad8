package domain

import "time"

// Branch represents a physical facility location containing courts.
type Branch struct {
	ID        string     `json:"id"`
	CompanyID string     `json:"company_id"`
	Name      string     `json:"name"`
	Timezone  string     `json:"timezone"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// BusinessHours holds the weekly open/close schedule for a branch.
// One row per (branch, day-of-week).
type BusinessHours struct {
	ID          string       `json:"id"`
	BranchID    string       `json:"branch_id"`
	DayOfWeek   int          `json:"day_of_week"` // 0=Sunday..6
	OpenMinute  MinutesOfDay `json:"open_minute"`
	CloseMinute MinutesOfDay `json:"close_minute"`
	Closed      bool         `json:"closed"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SpecialHours overrides BusinessHours entirely for one calendar date.
type SpecialHours struct {
	ID          string       `json:"id"`
	BranchID    string       `json:"branch_id"`
	Date        time.Time    `json:"date"` // midnight UTC of the affected day
	OpenMinute  MinutesOfDay `json:"open_minute"`
	CloseMinute MinutesOfDay `json:"close_minute"`
	Closed      bool         `json:"closed"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BlockReason categorizes a resource block.
type BlockReason string

const (
	BlockReasonMaintenance  BlockReason = "maintenance"
	BlockReasonClosure      BlockReason = "closure"
	BlockReasonPrivateEvent BlockReason = "private_event"
	BlockReasonBuffer       BlockReason = "buffer"
	BlockReasonHoliday      BlockReason = "holiday"
)

// IsValid checks if the reason is a valid BlockReason
func (r BlockReason) IsValid() bool {
	switch r {
	case BlockReasonMaintenance, BlockReasonClosure, BlockReasonPrivateEvent,
		BlockReasonBuffer, BlockReasonHoliday:
		return true
	}
	return false
}

// ResourceBlock is an administrative unavailability window for a whole
// branch (CourtID nil) or a single court. Active blocks subtract from
// availability regardless of business hours.
type ResourceBlock struct {
	ID        string      `json:"id"`
	BranchID  string      `json:"branch_id"`
	CourtID   *string     `json:"court_id,omitempty"`
	Window    TimeWindow  `json:"window"`
	Reason    BlockReason `json:"reason"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

// AppliesTo reports whether the block covers the given court.
func (b *ResourceBlock) AppliesTo(courtID string) bool {
	return b.CourtID == nil || *b.CourtID == courtID
}

// Blocks reports whether the block makes the court unavailable for any
// part of the window.
func (b *ResourceBlock) Blocks(courtID string, w TimeWindow) bool {
	if !b.Active || b.DeletedAt != nil {
		return false
	}
	return b.AppliesTo(courtID) && b.Window.Overlaps(w)
}
