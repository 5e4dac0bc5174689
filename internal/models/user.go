package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User — пользователь платформы. CRM-поля — кэш-подсказка, а не внешний ключ:
// контакт может не существовать или жить в другой локации.
type User struct {
	Base
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email    string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name     string  `gorm:"size:255" json:"name"`
	Role     string  `gorm:"size:32" json:"role"`
	TenantID *string `gorm:"index;size:36" json:"tenant_id,omitempty"`

	CRMContactID  string     `gorm:"column:crm_contact_id;size:64" json:"crm_contact_id,omitempty"`
	CRMLocationID string     `gorm:"column:crm_location_id;size:64" json:"crm_location_id,omitempty"`
	CRMVerifiedAt *time.Time `gorm:"column:crm_verified_at" json:"crm_verified_at,omitempty"`
}

// BeforeSave — email уникален без учёта регистра.
func (u *User) BeforeSave(_ *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ContactHint — закэшированная ссылка на контакт.
func (u *User) ContactHint() ContactHint {
	return ContactHint{ContactID: u.CRMContactID, LocationID: u.CRMLocationID, VerifiedAt: u.CRMVerifiedAt}
}

type ContactHint struct {
	ContactID  string
	LocationID string
	VerifiedAt *time.Time
}

// Fresh — подсказке можно верить, только если локация совпадает
// и проверка была не раньше ttl назад.
func (h ContactHint) Fresh(locationID string, ttl time.Duration, now time.Time) bool {
	if h.ContactID == "" || h.LocationID == "" || h.VerifiedAt == nil {
		return false
	}
	if h.LocationID != locationID {
		return false
	}
	return now.Sub(*h.VerifiedAt) <= ttl
}
