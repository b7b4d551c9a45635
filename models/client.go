package models

import "time"

// Client is a pantry shopper record. MonthlyVisitCount/CountMonth form
// a best-effort cache of the rolling monthly usage; the authoritative
// value is always recomputed from bookings + visits, and the cache is
// refreshed whenever CountMonth differs from the current month.
type Client struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"size:255;not null"`
	Phone string `json:"phone" gorm:"size:32"`

	MonthlyVisitCount int    `json:"monthly_visit_count" gorm:"default:0"`
	CountMonth        string `json:"count_month" gorm:"size:7"` // YYYY-MM

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Client) TableName() string {
	return "clients"
}
