package models

import "time"

const (
	RoleShopper   = "shopper"
	RoleDelivery  = "delivery"
	RoleVolunteer = "volunteer"
	RoleStaff     = "staff"
	RoleAgency    = "agency"
)

type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	FullName string `json:"full_name" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255;uniqueIndex"`
	Role     string `json:"role" gorm:"type:varchar(20);not null;default:'shopper';check:role IN ('shopper','delivery','volunteer','staff','agency')"`

	// Shoppers are linked to their own client record.
	ClientID *uint `json:"client_id" gorm:"index"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Client *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}

func (User) TableName() string {
	return "users"
}

// AgencyLink authorizes an agency user to act on behalf of a client.
type AgencyLink struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	AgencyUserID uint `json:"agency_user_id" gorm:"not null;index;uniqueIndex:idx_agency_client"`
	ClientID     uint `json:"client_id" gorm:"not null;index;uniqueIndex:idx_agency_client"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (AgencyLink) TableName() string {
	return "agency_links"
}
