package db

import "gorm.io/gorm"

// NotDeleted filters soft-deleted rows for raw Table()/Count() queries where
// gorm does not apply the DeletedAt filter itself.
func NotDeleted() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("deleted_at IS NULL")
	}
}

// ForMerchant limits a query to one merchant's rows.
func ForMerchant(merchantID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("merchant_id = ?", merchantID)
	}
}
