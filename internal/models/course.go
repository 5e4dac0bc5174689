package models

import "time"

const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusRefunded  = "refunded"
)

// Ниже — записи, которыми владеют модули контента и оплат;
// движок синхронизации их только читает (и ставит ghl_synced_at).

type Course struct {
	Base
	Title string `gorm:"size:255;not null" json:"title"`
}

type Enrollment struct {
	Base
	UserID      string     `gorm:"index;size:36;not null" json:"user_id"`
	CourseID    string     `gorm:"index;size:36;not null" json:"course_id"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CRMSyncedAt *time.Time `gorm:"column:ghl_synced_at" json:"ghl_synced_at,omitempty"`
}

// Purchase.Amount — в минорных единицах валюты.
type Purchase struct {
	Base
	UserID    string    `gorm:"index;size:36;not null" json:"user_id"`
	CourseID  string    `gorm:"index;size:36;not null" json:"course_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"size:3" json:"currency"`
	Status    string    `gorm:"size:16" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
