package database

import (
	"fmt"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the sqlite database at dbPath and migrates every table.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.TrelloConfig{},
		&models.CardMapping{},
		&models.SyncLog{},
		&models.Opportunity{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	zap.L().Debug("Database migrated", zap.String("path", dbPath))
	return db, nil
}
