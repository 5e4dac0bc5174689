package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"coursesync/internal/models"
)

type UserStore struct{ db *gorm.DB }

func NewUserStore(db *gorm.DB) *UserStore { return &UserStore{db: db} }

func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpdateCRMRef — запись закэшированной ссылки на контакт после успешного upsert.
func (s *UserStore) UpdateCRMRef(ctx context.Context, userID, contactID, locationID string, verifiedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"crm_contact_id":  contactID,
			"crm_location_id": locationID,
			"crm_verified_at": verifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignTenant привязывает пользователя к субаккаунту. Кэш CRM не трогаем:
// при следующей синхронизации локация не совпадёт и контакт будет найден заново.
func (s *UserStore) AssignTenant(ctx context.Context, userID, tenantID string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("tenant_id", tenantID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
