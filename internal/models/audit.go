package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SyncActionEnroll   = "enroll"
	SyncActionPurchase = "purchase"
	SyncActionRevoke   = "revoke"
)

const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusPending = "pending"
)

// SyncAuditRecord — append-only, одна запись на попытку синхронизации.
type SyncAuditRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       string         `gorm:"index;size:36;not null" json:"user_id"`
	EnrollmentID *string        `gorm:"index;size:36" json:"enrollment_id,omitempty"`
	Action       string         `gorm:"size:16;not null" json:"action"`
	Status       string         `gorm:"size:16;not null" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Response     datatypes.JSON `json:"response,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}
