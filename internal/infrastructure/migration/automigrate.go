package migration

import (
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/models"
)

// AutoMigrateModels lists the models gorm creates when no SQL scripts are used.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.ResourceModel{},
		&models.FunnelModel{},
		&models.FunnelResourceModel{},
	}
}
