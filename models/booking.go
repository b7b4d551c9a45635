package models

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusSubmitted BookingStatus = "submitted"
	BookingStatusApproved  BookingStatus = "approved"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusVisited   BookingStatus = "visited"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Terminal reports whether the status ends the booking's lifecycle.
// Only submitted and approved bookings count toward the "one upcoming
// booking per client" rule.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusVisited, BookingStatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Exactly one of ClientID / NewClientName is set. Walk-in bookings
	// created by staff for a client without a record carry only a name.
	ClientID      *uint  `json:"client_id" gorm:"index"`
	NewClientName string `json:"new_client_name,omitempty" gorm:"size:255"`

	// SlotID is cleared when a walk-in visit consumes an upcoming
	// reservation early.
	SlotID *uint `json:"slot_id" gorm:"index"`

	// Calendar day in the pantry zone, wire format YYYY-MM-DD. Stored
	// as a plain day, not an instant.
	Date string `json:"date" gorm:"size:10;not null;index"`

	Status BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:'submitted';index"`

	// Request or rejection reason shown to the client.
	Reason string `json:"reason" gorm:"size:500"`

	// Staff-only note; redacted from non-staff history responses.
	StaffNote string `json:"staff_note,omitempty" gorm:"size:1000"`

	IsStaffBooking bool `json:"is_staff_booking" gorm:"default:false"`

	// Bearer capability authorizing self-service reschedule/cancel.
	// Reissued on every successful reschedule.
	RescheduleToken string `json:"-" gorm:"size:36;not null;uniqueIndex"`

	ReminderSent bool `json:"reminder_sent" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Client *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Slot   *Slot   `json:"slot,omitempty" gorm:"foreignKey:SlotID"`
}

// TableName specifies the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// BookingCreateRequest is the body for POST /bookings.
type BookingCreateRequest struct {
	ClientID      *uint  `json:"client_id"`
	NewClientName string `json:"new_client_name"`
	SlotID        uint   `json:"slot_id" binding:"required"`
	Date          string `json:"date" binding:"required"`
	Note          string `json:"note"`
}

// BookingDecideRequest is the body for POST /bookings/:id/decide.
type BookingDecideRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Reason  string `json:"reason"`
}

// BookingCancelRequest is the body for cancel endpoints.
type BookingCancelRequest struct {
	Reason string `json:"reason"`
}

// BookingRescheduleRequest is the body for token reschedules.
type BookingRescheduleRequest struct {
	SlotID uint   `json:"slot_id" binding:"required"`
	Date   string `json:"date" binding:"required"`
}

// BookingMarkRequest is the body for visited/no-show marks.
type BookingMarkRequest struct {
	Note string `json:"note"`
}
