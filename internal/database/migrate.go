package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"seekr/internal/models"
)

// AllModels is the full set of tables the service owns, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.PendingUser{},
		&models.PlatformConfig{},
		&models.Listing{},
		&models.Escrow{},
		&models.EscrowEvent{},
		&models.Dispute{},
		&models.Transaction{},
		&models.BankAccount{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
	}
}

func Migrate() error {
	log.Println("Running database migrations...")

	if err := MigrateOn(DB); err != nil {
		log.Printf("Error migrating database: %v", err)
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

// MigrateOn runs the automigration against an explicit connection. Tests use
// this with an in-memory sqlite database.
func MigrateOn(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
