package repo

import (
	"context"

	"gorm.io/gorm"

	"coursesync/internal/models"
)

type TenantStore struct{ db *gorm.DB }

func NewTenantStore(db *gorm.DB) *TenantStore { return &TenantStore{db: db} }

func (s *TenantStore) Get(ctx context.Context, id string) (*models.TenantAccount, error) {
	var t models.TenantAccount
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *TenantStore) Create(ctx context.Context, t *models.TenantAccount) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// Delete не трогает пользователей: их tenant_id остаётся висячим
// и резолвер уводит их на дефолтную локацию.
func (s *TenantStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TenantAccount{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
