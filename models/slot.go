package models

import "time"

// Slot is a fixed daily time window reused across all calendar dates.
// MaxCapacity bounds the number of approved bookings per (slot, date)
// pair; the bound spans multiple booking rows, so it is enforced
// transactionally by the capacity gate rather than by a CHECK
// constraint.
type Slot struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StartTime   string `json:"start_time" gorm:"size:5;not null"` // HH:MM
	EndTime     string `json:"end_time" gorm:"size:5;not null"`   // HH:MM
	MaxCapacity int    `json:"max_capacity" gorm:"not null;default:8"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Slot) TableName() string {
	return "slots"
}

// SlotRequest is the body for slot create/update.
type SlotRequest struct {
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
	MaxCapacity int    `json:"max_capacity" binding:"required,min=1"`
}
