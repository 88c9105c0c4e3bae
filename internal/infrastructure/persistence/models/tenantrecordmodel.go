package models

import (
	"time"

	"gorm.io/gorm"
)

type TenantRecordModel struct {
	ID                   uint   `gorm:"primaryKey"`
	TenantID             string `gorm:"size:64;not null;uniqueIndex"`
	StorageMode          string `gorm:"size:16;not null"`
	StorageIdentifier    string `gorm:"size:63;not null"`
	DSN                  string `gorm:"size:512;not null"`
	Username             string `gorm:"size:63;not null"`
	EncryptedPassword    string `gorm:"size:512;not null"`
	Status               string `gorm:"size:16;not null;default:'active';index"`
	LastMigrationVersion uint   `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (TenantRecordModel) TableName() string {
	return "tenant_records"
}

func (m *TenantRecordModel) BeforeCreate(tx *gorm.DB) error {
	if m.Status == "" {
		m.Status = "active"
	}
	return nil
}
