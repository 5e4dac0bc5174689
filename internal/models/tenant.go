package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusPending   = "pending"
)

// TenantAccount — white-label субаккаунт со своей локацией и токеном в CRM.
type TenantAccount struct {
	Base
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OwnerUserID        string         `gorm:"index;size:36;not null" json:"owner_user_id"`
	Name               string         `gorm:"size:255" json:"name"`
	ExternalLocationID string         `gorm:"size:64" json:"external_location_id"`
	ExternalCredential string         `gorm:"type:text" json:"-"`
	Status             string         `gorm:"size:16;not null" json:"status"`
	Branding           datatypes.JSON `json:"branding,omitempty"`
}
