package db

import (
	"fmt"
	"reportrelay/internal/config"
	"reportrelay/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects the submission journal database and migrates it.
// driver is config.JournalPostgres or config.JournalSQLite.
func Open(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.JournalPostgres:
		dialector = postgres.Open(dsn)
	case config.JournalSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}
	log.Info("journal database connection established", zap.String("driver", driver))

	if err := db.AutoMigrate(&models.Submission{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}
	log.Info("journal database migration completed")

	return db, nil
}
