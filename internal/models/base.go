package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base — строковый UUID-ключ, общий для сущностей соседних модулей.
type Base struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
}

func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
