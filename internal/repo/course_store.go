package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"coursesync/internal/models"
)

// CourseStore — read-only доступ к курсам, записям и покупкам соседних модулей.
type CourseStore struct{ db *gorm.DB }

func NewCourseStore(db *gorm.DB) *CourseStore { return &CourseStore{db: db} }

func (s *CourseStore) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *CourseStore) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *CourseStore) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// MarkEnrollmentSynced — unsynced -> synced. Отдельного статуса failed нет.
func (s *CourseStore) MarkEnrollmentSynced(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ?", id).
		Update("ghl_synced_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
