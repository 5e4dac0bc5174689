package repo

import (
	"context"

	"gorm.io/gorm"

	"coursesync/internal/models"
)

// AuditStore — только вставка и чтение; записи не обновляются и не удаляются.
type AuditStore struct{ db *gorm.DB }

func NewAuditStore(db *gorm.DB) *AuditStore { return &AuditStore{db: db} }

func (s *AuditStore) Append(ctx context.Context, rec *models.SyncAuditRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *AuditStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.SyncAuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []models.SyncAuditRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
