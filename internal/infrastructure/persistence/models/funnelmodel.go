package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/orris-inc/storefront/internal/shared/constants"
)

// FunnelModel represents the database persistence model for funnels.
// Funnels are never deleted from here, so there is no DeletedAt.
type FunnelModel struct {
	ID            uint           `gorm:"primarykey"`
	SID           string         `gorm:"not null;size:32;uniqueIndex:idx_funnel_sid"` // fnl_xxxxxxxxxxxx
	MerchantID    string         `gorm:"not null;size:64;index:idx_funnel_merchant"`
	Name          string         `gorm:"not null;size:100"`
	GeneratedFlow datatypes.JSON `gorm:"column:generated_flow"`
	IsDeployed    bool           `gorm:"not null;default:false"`
	DeployedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int `gorm:"not null;default:1"`

	Resources []FunnelResourceModel `gorm:"foreignKey:FunnelID"`
}

// TableName specifies the table name for GORM.
func (FunnelModel) TableName() string {
	return constants.TableFunnels
}

// FunnelResourceModel is one row of the funnel assignment relation.
type FunnelResourceModel struct {
	FunnelID   uint `gorm:"primaryKey;autoIncrement:false"`
	ResourceID uint `gorm:"primaryKey;autoIncrement:false;index:idx_funnel_resource_resource"`
	CreatedAt  time.Time

	Resource ResourceModel `gorm:"foreignKey:ResourceID"`
}

// TableName specifies the table name for GORM.
func (FunnelResourceModel) TableName() string {
	return constants.TableFunnelResources
}
