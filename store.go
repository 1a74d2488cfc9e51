package main

import (
	"fmt"

	"unholygrail/internal/config"
	"unholygrail/internal/models"
	"unholygrail/internal/repositories"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openUserRepository opens the user store selected by cfg.DBDriver. The
// returned close function releases the underlying connection pool.
func openUserRepository(cfg *config.Config) (repositories.UserRepository, func() error, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "memory":
		logrus.Warn("using in-memory user store, data is lost on restart")
		return repositories.NewMemoryUserRepository(), func() error { return nil }, nil
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	logrus.WithField("driver", cfg.DBDriver).Info("user store ready")
	return repositories.NewGORMUserRepository(db), sqlDB.Close, nil
}
