package models

import (
	"time"

	"gorm.io/gorm"
)

type Notification struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID *uint  `json:"user_id" gorm:"index"`
	Email  string `json:"email" gorm:"size:255"`
	Title  string `json:"title" gorm:"not null"`
	Body   string `json:"body" gorm:"not null"`
	Type   string `json:"type" gorm:"not null"`  // booking_created, booking_approved, booking_rejected, booking_cancelled, booking_rescheduled, booking_reminder
	Data   string `json:"data" gorm:"type:text"` // JSON payload for the mailer
	Sent   bool   `json:"sent" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

func (Notification) TableName() string {
	return "notifications"
}
