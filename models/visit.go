package models

import "time"

// Visit is an actual pantry visit recorded at the door. Non-anonymous
// visits count toward the monthly quota and may retroactively resolve
// an approved booking (see the visit service).
type Visit struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Nil for anonymous walk-ins.
	ClientID *uint `json:"client_id" gorm:"index;uniqueIndex:idx_visits_client_date"`

	Date      string `json:"date" gorm:"size:10;not null;index;uniqueIndex:idx_visits_client_date"`
	Anonymous bool   `json:"anonymous" gorm:"default:false"`
	Note      string `json:"note" gorm:"size:1000"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Client *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}

func (Visit) TableName() string {
	return "visits"
}

// VisitCreateRequest is the body for POST /visits.
type VisitCreateRequest struct {
	ClientID  *uint  `json:"client_id"`
	Anonymous bool   `json:"anonymous"`
	Date      string `json:"date" binding:"required"`
	Note      string `json:"note"`
}
