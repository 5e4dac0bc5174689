package api

import "coursesync/internal/syncer"

type SyncEnrollmentRequest = syncer.Options

type RevokeRequest struct {
	UserID   string `json:"userId" validate:"required"`
	CourseID string `json:"courseId" validate:"required"`
}

type ProvisionRequest struct {
	OwnerUserID string         `json:"ownerUserId" validate:"required"`
	Name        string         `json:"name" validate:"required,max=255"`
	Email       string         `json:"email" validate:"omitempty,email"`
	Branding    map[string]any `json:"branding,omitempty"`
}
