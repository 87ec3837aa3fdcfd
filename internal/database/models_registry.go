package database

import (
	"alvacus/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.Notification{},
		&models.Calculator{},
		&models.CalculatorSave{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Reply{},
		&models.Report{},
		&models.Contact{},
	}
}

// AutoMigrate creates or updates every persistent table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}
