package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"routedesk/internal/models"
)

// OpenDB opens the local database for sessions and draft snapshots and
// migrates its tables.
func OpenDB(c DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.Driver {
	case "sqlite":
		dialector = sqlite.Open(c.Path)
	default:
		dialector = postgres.Open(c.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if c.Driver == "sqlite" {
		// One writer keeps sqlite from returning SQLITE_BUSY under concurrent handlers.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.Session{}, &models.DraftRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	logrus.WithField("driver", c.Driver).Info("Database ready")
	return db, nil
}
