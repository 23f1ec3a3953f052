package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/storefront/internal/shared/constants"
)

// ResourceModel represents the database persistence model for catalog resources.
type ResourceModel struct {
	ID             uint   `gorm:"primarykey"`
	SID            string `gorm:"not null;size:32;uniqueIndex:idx_resource_sid"` // res_xxxxxxxxxxxx
	MerchantID     string `gorm:"not null;size:64;index:idx_resource_merchant_name,priority:1"`
	Name           string `gorm:"not null;size:100"`
	NormalizedName string `gorm:"not null;size:100;index:idx_resource_merchant_name,priority:2"`
	Link           string `gorm:"size:2048"`
	OriginKind     string `gorm:"not null;size:20"`
	ValueCategory  string `gorm:"not null;size:10"`
	PromoCode      string `gorm:"size:50"`
	Description    string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
	Version        int            `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM.
func (ResourceModel) TableName() string {
	return constants.TableResources
}

// BeforeCreate hook for GORM.
func (m *ResourceModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
